package consultapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
)

func analysisPath(kind clinic.AnalysisKind, id int64) string {
	return string(kind) + "/reports/" + strconv.FormatInt(id, 10)
}

// AnalysisReport returns a pre-surgery or OrthoK analysis report.
func (c *Client) AnalysisReport(ctx context.Context, kind clinic.AnalysisKind, id int64) (*clinic.AnalysisReport, error) {
	var res struct {
		Data *clinic.AnalysisReport `json:"data"`
		clinic.AnalysisReport
	}
	if err := c.do(ctx, request{
		op:     "get_analysis_report",
		method: http.MethodGet,
		path:   analysisPath(kind, id),
		retry:  true,
	}, &res); err != nil {
		return nil, err
	}
	if res.Data != nil {
		return res.Data, nil
	}
	return &res.AnalysisReport, nil
}

// ConfirmAnalysisReport confirms a completed analysis report.
func (c *Client) ConfirmAnalysisReport(ctx context.Context, kind clinic.AnalysisKind, id int64) (string, error) {
	var res message
	if err := c.do(ctx, request{
		op:     "confirm_analysis_report",
		method: http.MethodPost,
		path:   analysisPath(kind, id) + "/confirm",
	}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// RequestAnalysisModification submits a change request for a report.
func (c *Client) RequestAnalysisModification(ctx context.Context, kind clinic.AnalysisKind, id int64, m clinic.Modification) (string, error) {
	var res message
	if err := c.do(ctx, request{
		op:     "modify_analysis_report",
		method: http.MethodPost,
		path:   analysisPath(kind, id) + "/modify",
		body:   m,
	}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}
