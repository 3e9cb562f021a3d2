package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/scholaris/scholaris/internal/jobs"
	"github.com/scholaris/scholaris/internal/students"
)

// OrphanScanner produces an orphan report.
type OrphanScanner interface {
	FindOrphans(ctx context.Context) (students.OrphanReport, error)
}

// OrphanScanJob logs and records student records that lost their counterpart.
type OrphanScanJob struct {
	Scanner OrphanScanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOrphanScanJob initialises the orphan scan handler.
func NewOrphanScanJob(scanner OrphanScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrphanScanJob {
	return &OrphanScanJob{Scanner: scanner, Logger: logger, Metrics: metrics}
}

// Handle executes the orphan scan.
func (j *OrphanScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Scanner == nil {
		return errors.New("orphan scan: handler not configured")
	}
	var payload OrphanScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskOrphanScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	report, err := j.Scanner.FindOrphans(ctx)
	if err != nil {
		logger.Error("orphan scan failed", slog.Any("error", err))
		return err
	}

	for _, p := range report.ProfilesWithoutIdentity {
		logger.Warn("student profile without identity",
			slog.String("profile_id", p.ID),
			slog.String("identity_id", p.IdentityID),
			slog.String("email", p.Email),
		)
	}
	for _, identity := range report.IdentitiesWithoutProfile {
		logger.Warn("student identity without profile",
			slog.String("identity_id", identity.ID),
			slog.String("email", identity.Email),
		)
	}
	j.Metrics.SetOrphans("profile", len(report.ProfilesWithoutIdentity))
	j.Metrics.SetOrphans("identity", len(report.IdentitiesWithoutProfile))
	logger.Info("orphan scan complete", slog.Int("orphans", report.Total()))
	return nil
}

func (j *OrphanScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
