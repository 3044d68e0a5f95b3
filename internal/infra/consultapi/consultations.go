package consultapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
)

// ListConsultations returns one page of consultations matching f.
func (c *Client) ListConsultations(ctx context.Context, f clinic.ConsultationFilter) (*clinic.ConsultationPage, error) {
	var page clinic.ConsultationPage
	if err := c.do(ctx, request{
		op:     "list_consultations",
		method: http.MethodGet,
		path:   "consultations",
		query:  f.Values(),
		retry:  true,
	}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetConsultation returns a single consultation.
func (c *Client) GetConsultation(ctx context.Context, id int64) (*clinic.Consultation, error) {
	// The backend misspells the envelope key.
	var res struct {
		Consultation clinic.Consultation `json:"consulation"`
	}
	if err := c.do(ctx, request{
		op:     "get_consultation",
		method: http.MethodGet,
		path:   "consultations/" + strconv.FormatInt(id, 10),
		retry:  true,
	}, &res); err != nil {
		return nil, err
	}
	return &res.Consultation, nil
}

// ConsultationStatistics returns the statistics summary together with the
// organizations the caller can filter on.
func (c *Client) ConsultationStatistics(ctx context.Context, q clinic.StatisticsQuery) (*clinic.StatisticsSummary, error) {
	var res struct {
		Statistics  clinic.Statistics `json:"statistics"`
		QueryParams struct {
			AccessibleOrganizations []clinic.OrganizationRef `json:"accessible_organizations"`
		} `json:"query_params"`
	}
	if err := c.do(ctx, request{
		op:     "consultation_statistics",
		method: http.MethodGet,
		path:   "consultations/statistics/summary",
		query:  q.Values(),
		retry:  true,
	}, &res); err != nil {
		return nil, err
	}
	return &clinic.StatisticsSummary{
		Statistics:              res.Statistics,
		AccessibleOrganizations: res.QueryParams.AccessibleOrganizations,
	}, nil
}

// FetchReport asks the backend to pull the consultation's report from the
// upstream provider. Failures carry FetchAttempts on the *APIError.
func (c *Client) FetchReport(ctx context.Context, id int64) (*clinic.FetchResult, error) {
	return c.fetchReport(ctx, "fetch_report", id, "fetch-report")
}

// ForceFetchReport re-fetches a report even when one already exists.
// Failures carry FetchAttempts and CanRetry on the *APIError.
func (c *Client) ForceFetchReport(ctx context.Context, id int64) (*clinic.FetchResult, error) {
	return c.fetchReport(ctx, "force_fetch_report", id, "force-fetch-report")
}

func (c *Client) fetchReport(ctx context.Context, op string, id int64, action string) (*clinic.FetchResult, error) {
	var res clinic.FetchResult
	if err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "consultations/" + strconv.FormatInt(id, 10) + "/" + action,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DownloadReport streams the consultation's report file to w and returns the
// number of bytes written.
func (c *Client) DownloadReport(ctx context.Context, consultation clinic.Consultation, w io.Writer) (int64, error) {
	ctx, span := c.tracer.Start(ctx, "consultapi_client.download_report",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("consultation_id", consultation.ID)))
	defer span.End()

	if !consultation.HasReport() {
		span.SetStatus(codes.Error, "no report")
		return 0, ErrNoReport
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, consultation.ReportURL, nil)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to create download request: %w", err)
	}
	// The report may live on object storage; only the backend gets the token.
	if req.URL.Host == c.baseURL.Host {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download failed")
		return 0, fmt.Errorf("download report %d: %w", consultation.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := decodeAPIError(resp, request{method: http.MethodGet, path: req.URL.Path})
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "download failed")
		return 0, apiErr
	}

	n, err := io.Copy(w, resp.Body)
	span.SetAttributes(attribute.Int64("bytes", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download interrupted")
		return n, fmt.Errorf("write report %d: %w", consultation.ID, err)
	}
	span.SetStatus(codes.Ok, "report downloaded")
	return n, nil
}
