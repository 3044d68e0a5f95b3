package reporting

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/pkg/common/logger"
	"github.com/maidige/consultation-admin/pkg/common/otel"
)

// ErrInvalidConsultationID is returned when generation is requested without a
// consultation id.
var ErrInvalidConsultationID = errors.New("consultation id is required")

// EntityKeyForConsultation is the polling key used for a consultation's
// comprehensive report.
func EntityKeyForConsultation(consultationID string) string {
	return "consultation:" + consultationID
}

// Generator submits comprehensive report requests and hands the resulting
// job to a PollingManager.
type Generator struct {
	requester domain.ReportRequester
	manager   *PollingManager

	tracer trace.Tracer
	logger *logger.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(
	requester domain.ReportRequester,
	manager *PollingManager,
	tracer trace.Tracer,
	logger *logger.Logger,
) *Generator {
	return &Generator{
		requester: requester,
		manager:   manager,
		tracer:    tracer,
		logger:    logger.With("component", "report_generator"),
	}
}

// Generate requests a comprehensive report for consultationID and starts
// polling the returned job. The job id is returned once polling is running.
func (g *Generator) Generate(ctx context.Context, consultationID string, onComplete CompletionFunc) (string, error) {
	if consultationID == "" {
		return "", ErrInvalidConsultationID
	}

	ctx, span := otel.AddSpan(ctx, g.tracer, "generator.reporting.generate",
		attribute.String("consultation_id", consultationID))
	defer span.End()

	jobID, err := g.requester.GenerateComprehensiveReport(ctx, consultationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "report request failed")
		return "", fmt.Errorf("request comprehensive report for %s: %w", consultationID, err)
	}
	span.SetAttributes(attribute.String("job_id", jobID))

	if err := g.manager.StartPolling(ctx, jobID, EntityKeyForConsultation(consultationID), onComplete); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start polling")
		return "", fmt.Errorf("start polling job %s: %w", jobID, err)
	}

	g.logger.Info(ctx, "Comprehensive report requested", "consultation_id", consultationID, "job_id", jobID)
	span.SetStatus(codes.Ok, "report requested")
	return jobID, nil
}

// GenerateAndWait behaves like Generate and blocks until the job reaches a
// terminal status or ctx is done. When ctx ends first the polling loop is
// stopped and ctx's error is returned.
func (g *Generator) GenerateAndWait(ctx context.Context, consultationID string) (domain.StatusReport, error) {
	done := make(chan domain.StatusReport, 1)
	_, err := g.Generate(ctx, consultationID, func(_ domain.ReportStatus, report domain.StatusReport) {
		done <- report
	})
	if err != nil {
		return domain.StatusReport{}, err
	}

	select {
	case report := <-done:
		return report, nil
	case <-ctx.Done():
		g.manager.StopPolling(EntityKeyForConsultation(consultationID))
		return domain.StatusReport{}, ctx.Err()
	}
}
