package scheduler

import (
	"context"

	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ExpirySweepJobName is the scheduler name and lock key of the reservation sweep
const ExpirySweepJobName = "reservation-expiry-sweep"

// ExpiredReleaser is satisfied by appinv.ExpirationService
type ExpiredReleaser interface {
	ReleaseExpired(ctx context.Context) (*appinv.ExpiredReservationStats, error)
}

// ExpirySweepJob moves overdue active holds to expired
type ExpirySweepJob struct {
	releaser ExpiredReleaser
	logger   *zap.Logger
}

// NewExpirySweepJob creates the sweep job
func NewExpirySweepJob(releaser ExpiredReleaser, logger *zap.Logger) *ExpirySweepJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweepJob{releaser: releaser, logger: logger}
}

// Name implements Job
func (j *ExpirySweepJob) Name() string { return ExpirySweepJobName }

// Run implements Job
func (j *ExpirySweepJob) Run(ctx context.Context) error {
	stats, err := j.releaser.ReleaseExpired(ctx)
	if err != nil {
		return err
	}
	span := trace.SpanFromContext(ctx)
	telemetry.SetAttributes(span,
		"sweep.expired", stats.Expired,
		"sweep.skipped", stats.Skipped,
		"sweep.failed", stats.FailedExpiries,
	)
	if stats.FailedExpiries > 0 {
		j.logger.Warn("Expiry sweep left reservations active",
			zap.Int("failed", stats.FailedExpiries),
		)
	}
	return nil
}

var _ ExpiredReleaser = (*appinv.ExpirationService)(nil)
