package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"cortexdb/internal/domain"
)

// VacuumExpiredKeys deletes every API key row past its expires_at and emits
// one audit event per run summarizing how many were removed. Called
// directly by callers that want a one-shot sweep, and on the configured
// schedule by StartVacuum.
func (s *Service) VacuumExpiredKeys(ctx context.Context) (int, error) {
	n, err := s.Relational.DeleteExpiredAPIKeys(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("catalog: vacuum expired api keys: %w", err)
	}
	if n > 0 {
		s.audit(ctx, domain.AuditAPIKeyRevoke, "expired-keys", "vacuum", map[string]string{"count": fmt.Sprintf("%d", n)})
	}
	return n, nil
}

// StartVacuum schedules VacuumExpiredKeys on spec (standard five-field cron
// syntax) and starts the scheduler in its own goroutine. Callers stop it via
// the returned *cron.Cron's Stop method on shutdown.
func (s *Service) StartVacuum(spec string, logger *slog.Logger) (*cron.Cron, error) {
	sched := cron.New()
	_, err := sched.AddFunc(spec, func() {
		n, err := s.VacuumExpiredKeys(context.Background())
		if err != nil {
			if logger != nil {
				logger.Warn("api key vacuum failed", "error", err)
			}
			return
		}
		if n > 0 && logger != nil {
			logger.Info("api key vacuum removed expired keys", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: schedule vacuum: %w", err)
	}
	sched.Start()
	return sched, nil
}
