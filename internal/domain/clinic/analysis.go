package clinic

import (
	"errors"
	"fmt"
)

// ErrUnknownAnalysisKind is returned for analysis kinds other than
// pre-surgery and OrthoK.
var ErrUnknownAnalysisKind = errors.New("unknown analysis kind")

// AnalysisKind selects the analysis report family.
type AnalysisKind string

const (
	AnalysisPreSurgery AnalysisKind = "presurgery"
	AnalysisOrthoK     AnalysisKind = "orthok"
)

// ParseAnalysisKind validates s as an AnalysisKind.
func ParseAnalysisKind(s string) (AnalysisKind, error) {
	switch k := AnalysisKind(s); k {
	case AnalysisPreSurgery, AnalysisOrthoK:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAnalysisKind, s)
}

// Subject is the permission subject guarding this kind.
func (k AnalysisKind) Subject() string {
	if k == AnalysisOrthoK {
		return SubjectOrthoK
	}
	return SubjectPreSurgery
}

// AnalysisStatus is the lifecycle state of an analysis report.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisGenerating AnalysisStatus = "generating"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisConfirmed  AnalysisStatus = "confirmed"
)

// Confirmable reports whether a report in this status may be confirmed.
func (s AnalysisStatus) Confirmable() bool { return s == AnalysisCompleted }

// AnalysisReport is a pre-surgery or OrthoK analysis report.
type AnalysisReport struct {
	ID          int64          `json:"id" yaml:"id"`
	PatientName string         `json:"patientName" yaml:"patient_name"`
	VisitNumber string         `json:"visitNumber" yaml:"visit_number"`
	ReportURL   string         `json:"reportUrl" yaml:"report_url"`
	Status      AnalysisStatus `json:"status" yaml:"status"`
	Comment     string         `json:"comment,omitempty" yaml:"comment,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Modification is a change request for an analysis report.
type Modification struct {
	Comment string `json:"comment" validate:"required,max=1000"`
}
