package consultapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
)

// ListOrganizations queries the organization directory. The type filter
// defaults to hospitals.
func (c *Client) ListOrganizations(ctx context.Context, q clinic.OrganizationQuery) ([]clinic.Organization, error) {
	typ := q.Type
	if typ == 0 {
		typ = clinic.OrganizationHospital
	}
	v := url.Values{}
	v.Set("type", strconv.Itoa(int(typ)))
	if q.MaxResultCount > 0 {
		v.Set("MaxResultCount", strconv.Itoa(q.MaxResultCount))
	}

	var raw json.RawMessage
	if err := c.do(ctx, request{
		op:     "list_organizations",
		method: http.MethodGet,
		org:    true,
		path:   "common/organization",
		query:  v,
		retry:  true,
	}, &raw); err != nil {
		return nil, err
	}
	return decodeOrganizations(raw)
}

// decodeOrganizations accepts an {items: [...]}, {organizations: [...]} or
// bare array payload.
func decodeOrganizations(raw json.RawMessage) ([]clinic.Organization, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var orgs []clinic.Organization
		if err := json.Unmarshal(raw, &orgs); err != nil {
			return nil, fmt.Errorf("failed to decode organizations: %w", err)
		}
		return orgs, nil
	}

	var env struct {
		Items         []clinic.Organization `json:"items"`
		Organizations []clinic.Organization `json:"organizations"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode organizations: %w", err)
	}
	if env.Items != nil {
		return env.Items, nil
	}
	return env.Organizations, nil
}
