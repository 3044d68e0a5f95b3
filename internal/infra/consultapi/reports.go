package consultapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
)

var (
	_ domain.StatusQuerier   = (*Client)(nil)
	_ domain.ReportRequester = (*Client)(nil)
)

// GenerateComprehensiveReport starts asynchronous generation of a
// consultation's comprehensive report and returns the job id to poll.
func (c *Client) GenerateComprehensiveReport(ctx context.Context, consultationID string) (string, error) {
	var res struct {
		ReportID json.RawMessage `json:"report_id"`
	}
	if err := c.do(ctx, request{
		op:     "generate_comprehensive_report",
		method: http.MethodPost,
		path:   "consultations/" + url.PathEscape(consultationID) + "/comprehensive-report",
	}, &res); err != nil {
		return "", err
	}

	jobID := rawScalar(res.ReportID)
	if jobID == "" {
		return "", ErrEmptyJobID
	}
	return jobID, nil
}

// ReportStatus queries a comprehensive report job once. It never retries;
// the polling loop owns the retry policy. An unrecognized status is an
// error.
func (c *Client) ReportStatus(ctx context.Context, jobID string) (domain.StatusReport, error) {
	var raw map[string]any
	if err := c.do(ctx, request{
		op:     "report_status",
		method: http.MethodGet,
		path:   "comprehensive-reports/" + url.PathEscape(jobID) + "/status",
	}, &raw); err != nil {
		return domain.StatusReport{}, err
	}
	return decodeStatusReport(raw)
}

// decodeStatusReport interprets the flat status payload.
func decodeStatusReport(raw map[string]any) (domain.StatusReport, error) {
	s, _ := raw["status"].(string)
	status, err := domain.ParseReportStatus(s)
	if err != nil {
		return domain.StatusReport{}, err
	}

	progress, err := parseProgress(raw["progress"])
	if err != nil {
		return domain.StatusReport{}, fmt.Errorf("invalid progress: %w", err)
	}
	return domain.NewStatusReport(status, progress, raw), nil
}

// parseProgress accepts the numeric encodings the backend has been seen to
// use and clamps to 0..100 before converting, since int() of an out-of-range
// float is undefined. A missing value is zero.
func parseProgress(v any) (int, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		f = n
	case string:
		if n == "" {
			return 0, nil
		}
		var err error
		if f, err = strconv.ParseFloat(n, 64); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	if math.IsNaN(f) {
		return 0, nil
	}
	return int(math.Max(0, math.Min(100, f))), nil
}

// rawScalar renders a JSON string or number as text.
func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}
