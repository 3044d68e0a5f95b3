package clinic

import (
	"fmt"
	"net/url"
	"strconv"
)

// ConsultationStatus is the processing state of a pre-consultation record.
type ConsultationStatus string

const (
	ConsultationCompleted ConsultationStatus = "completed"
	ConsultationPending   ConsultationStatus = "pending"
	ConsultationFailed    ConsultationStatus = "failed"
	ConsultationGenerated ConsultationStatus = "generated"
)

// Valid reports whether s is one of the known consultation statuses.
func (s ConsultationStatus) Valid() bool {
	switch s {
	case ConsultationCompleted, ConsultationPending, ConsultationFailed, ConsultationGenerated:
		return true
	}
	return false
}

// Patient is the patient summary embedded in a consultation. The backend
// uses capitalized keys for it.
type Patient struct {
	Name          string `json:"Name" yaml:"name"`
	PhoneNumber   string `json:"PhoneNumber" yaml:"phone_number"`
	ChannelSource string `json:"ChannelSource" yaml:"channel_source"`
}

// Consultation is a pre-consultation record.
type Consultation struct {
	ID           int64              `json:"id" yaml:"id"`
	PatientID    string             `json:"patient_id" yaml:"patient_id"`
	Patient      *Patient           `json:"patient,omitempty" yaml:"patient,omitempty"`
	Organization *OrganizationRef   `json:"organization,omitempty" yaml:"organization,omitempty"`
	Status       ConsultationStatus `json:"status" yaml:"status"`
	ReportURL    string             `json:"report_url,omitempty" yaml:"report_url,omitempty"`
	CreatedAt    string             `json:"created_at" yaml:"created_at"`
}

// PatientLabel returns the patient's name, falling back to the patient id.
func (c Consultation) PatientLabel() string {
	if c.Patient != nil && c.Patient.Name != "" {
		return c.Patient.Name
	}
	return c.PatientID
}

// HasReport reports whether a report file is available for download.
func (c Consultation) HasReport() bool { return c.ReportURL != "" }

// ReportFileName is the suggested local file name for the consultation's
// report.
func (c Consultation) ReportFileName() string {
	return fmt.Sprintf("consultation_report_%s_%d.pdf", c.PatientLabel(), c.ID)
}

// ConsultationPage is one page of a consultation listing.
type ConsultationPage struct {
	Consultations []Consultation `json:"consultations" yaml:"consultations"`
	Total         int            `json:"total" yaml:"total"`
	CurrentPage   int            `json:"current_page" yaml:"current_page"`
	PerPage       int            `json:"per_page" yaml:"per_page"`
	LastPage      int            `json:"last_page" yaml:"last_page"`
}

// DefaultPageSize is the listing page size used when none is given.
const DefaultPageSize = 15

// ConsultationFilter narrows a consultation listing. Zero values are omitted
// from the query.
type ConsultationFilter struct {
	Page           int                `validate:"gte=0"`
	PerPage        int                `validate:"gte=0,lte=100"`
	Search         string             `validate:"max=100"`
	Status         ConsultationStatus `validate:"omitempty,oneof=completed pending failed generated"`
	OrganizationID int64              `validate:"gte=0"`
	StartDate      string             `validate:"omitempty,datetime=2006-01-02"`
	EndDate        string             `validate:"omitempty,datetime=2006-01-02"`
}

// Values encodes the filter as query parameters.
func (f ConsultationFilter) Values() url.Values {
	v := url.Values{}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(f.PerPage))
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	if f.OrganizationID > 0 {
		v.Set("organization_id", strconv.FormatInt(f.OrganizationID, 10))
	}
	if f.StartDate != "" {
		v.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		v.Set("end_date", f.EndDate)
	}
	return v
}

// FetchResult is the outcome of a manual report fetch.
type FetchResult struct {
	Consultation *Consultation `json:"consulation,omitempty" yaml:"consultation,omitempty"`
	Message      string        `json:"message" yaml:"message"`
}

// OrganizationStat is the consultation count for one organization.
type OrganizationStat struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// Statistics summarizes consultations visible to the caller.
type Statistics struct {
	TotalConsultations     int                `json:"total_consultations" yaml:"total_consultations"`
	CompletedConsultations int                `json:"completed_consultations" yaml:"completed_consultations"`
	PendingConsultations   int                `json:"pending_consultations" yaml:"pending_consultations"`
	FailedConsultations    int                `json:"failed_consultations" yaml:"failed_consultations"`
	OrganizationStats      []OrganizationStat `json:"organization_stats" yaml:"organization_stats"`
}

// CompletionRate is the percentage of consultations that completed.
func (s Statistics) CompletionRate() float64 {
	if s.TotalConsultations <= 0 {
		return 0
	}
	return float64(s.CompletedConsultations) / float64(s.TotalConsultations) * 100
}

// SuccessRate is the percentage of consultations that did not fail.
func (s Statistics) SuccessRate() float64 {
	if s.TotalConsultations <= 0 {
		return 0
	}
	return float64(s.TotalConsultations-s.FailedConsultations) / float64(s.TotalConsultations) * 100
}

// StatisticsQuery narrows the statistics summary.
type StatisticsQuery struct {
	OrganizationID int64  `validate:"gte=0"`
	StartDate      string `validate:"omitempty,datetime=2006-01-02"`
	EndDate        string `validate:"omitempty,datetime=2006-01-02"`
}

// Values encodes the query as query parameters.
func (q StatisticsQuery) Values() url.Values {
	return ConsultationFilter{
		OrganizationID: q.OrganizationID,
		StartDate:      q.StartDate,
		EndDate:        q.EndDate,
	}.Values()
}

// StatisticsSummary is the statistics payload together with the
// organizations the caller may filter by.
type StatisticsSummary struct {
	Statistics              Statistics        `json:"statistics" yaml:"statistics"`
	AccessibleOrganizations []OrganizationRef `json:"accessible_organizations" yaml:"accessible_organizations"`
}
