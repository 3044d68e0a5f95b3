package consultapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
)

func staffValues(q clinic.StaffQuery) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

type idBody struct {
	ID int64 `json:"id"`
}

// DoctorRoleOptions returns the roles a doctor can be assigned.
func (c *Client) DoctorRoleOptions(ctx context.Context) ([]clinic.DoctorRole, error) {
	var res struct {
		Roles []clinic.DoctorRole `json:"roles"`
	}
	if err := c.do(ctx, request{
		op:     "doctor_role_options",
		method: http.MethodGet,
		path:   "doctors/role-options",
		retry:  true,
	}, &res); err != nil {
		return nil, err
	}
	return res.Roles, nil
}

// ListDoctors returns doctors matching q and the total count.
func (c *Client) ListDoctors(ctx context.Context, q clinic.StaffQuery) ([]clinic.Doctor, int, error) {
	var res struct {
		Doctors []clinic.Doctor `json:"doctors"`
		Total   int             `json:"total"`
	}
	if err := c.do(ctx, request{
		op:     "list_doctors",
		method: http.MethodGet,
		path:   "doctors",
		query:  staffValues(q),
		retry:  true,
	}, &res); err != nil {
		return nil, 0, err
	}
	return res.Doctors, res.Total, nil
}

// GetDoctor returns a single doctor.
func (c *Client) GetDoctor(ctx context.Context, id int64) (*clinic.Doctor, error) {
	var res struct {
		Doctor clinic.Doctor `json:"doctor"`
	}
	if err := c.do(ctx, request{
		op:     "get_doctor",
		method: http.MethodGet,
		path:   "doctors/" + strconv.FormatInt(id, 10),
		retry:  true,
	}, &res); err != nil {
		return nil, err
	}
	return &res.Doctor, nil
}

// SaveDoctor creates a doctor, or updates one when in.ID is set. Both go
// through the same endpoint. Validation failures carry field messages on
// the *APIError.
func (c *Client) SaveDoctor(ctx context.Context, in clinic.DoctorInput) (string, error) {
	op := "create_doctor"
	if in.ID != 0 {
		op = "update_doctor"
	}
	var res message
	if err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "doctors",
		body:   in,
	}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// DeleteDoctor deletes a doctor.
func (c *Client) DeleteDoctor(ctx context.Context, id int64) (string, error) {
	var res message
	if err := c.do(ctx, request{
		op:     "delete_doctor",
		method: http.MethodDelete,
		path:   "doctors",
		body:   idBody{ID: id},
	}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// ListCounselors returns counselors matching q and the total count.
func (c *Client) ListCounselors(ctx context.Context, q clinic.StaffQuery) ([]clinic.Counselor, int, error) {
	var res struct {
		Counselors []clinic.Counselor `json:"counselors"`
		Total      int                `json:"total"`
	}
	if err := c.do(ctx, request{
		op:     "list_counselors",
		method: http.MethodGet,
		path:   "counselors",
		query:  staffValues(q),
		retry:  true,
	}, &res); err != nil {
		return nil, 0, err
	}
	return res.Counselors, res.Total, nil
}

// GetCounselor returns a single counselor.
func (c *Client) GetCounselor(ctx context.Context, id int64) (*clinic.Counselor, error) {
	var res struct {
		Counselor clinic.Counselor `json:"counselor"`
	}
	if err := c.do(ctx, request{
		op:     "get_counselor",
		method: http.MethodGet,
		path:   "counselors/" + strconv.FormatInt(id, 10),
		retry:  true,
	}, &res); err != nil {
		return nil, err
	}
	return &res.Counselor, nil
}

// CounselorResult is the response of counselor writes.
type CounselorResult struct {
	Counselor *clinic.Counselor `json:"counselor"`
	Message   string            `json:"message"`
}

// CreateCounselor creates a counselor.
func (c *Client) CreateCounselor(ctx context.Context, in clinic.CounselorInput) (*CounselorResult, error) {
	return c.writeCounselor(ctx, "create_counselor", http.MethodPost, in)
}

// UpdateCounselor updates the counselor identified by in.ID.
func (c *Client) UpdateCounselor(ctx context.Context, in clinic.CounselorInput) (*CounselorResult, error) {
	return c.writeCounselor(ctx, "update_counselor", http.MethodPut, in)
}

func (c *Client) writeCounselor(ctx context.Context, op, method string, in clinic.CounselorInput) (*CounselorResult, error) {
	var res CounselorResult
	if err := c.do(ctx, request{
		op:     op,
		method: method,
		path:   "counselors",
		body:   in,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteCounselor deletes a counselor.
func (c *Client) DeleteCounselor(ctx context.Context, id int64) (string, error) {
	var res message
	if err := c.do(ctx, request{
		op:     "delete_counselor",
		method: http.MethodDelete,
		path:   "counselors",
		body:   idBody{ID: id},
	}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}
