package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/walkweek/walkweek/internal/domain"
	"github.com/walkweek/walkweek/internal/observability"
	"github.com/walkweek/walkweek/internal/repository"
	"go.uber.org/zap"
)

const defaultRetentionInterval = 24 * time.Hour

// RetentionService prunes aged rows from the SMS bookkeeping tables. The
// outbound audit trail is append-only everywhere else; this is the one place
// rows leave it.
type RetentionService struct {
	audits    repository.AuditRepository
	statuses  repository.StatusRepository
	reminders repository.ReminderLogRepository
	settings  repository.SettingsRepository
	metrics   *observability.Metrics
	logger    *zap.Logger

	interval    time.Duration
	defaultDays int
	now         func() time.Time
}

func NewRetentionService(
	audits repository.AuditRepository,
	statuses repository.StatusRepository,
	reminders repository.ReminderLogRepository,
	settings repository.SettingsRepository,
	defaultDays int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*RetentionService, error) {
	if audits == nil {
		return nil, fmt.Errorf("audit repository is required")
	}
	if statuses == nil {
		return nil, fmt.Errorf("status repository is required")
	}
	if reminders == nil {
		return nil, fmt.Errorf("reminder log repository is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if defaultDays <= 0 {
		defaultDays = 90
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetentionService{
		audits:      audits,
		statuses:    statuses,
		reminders:   reminders,
		settings:    settings,
		metrics:     metrics,
		logger:      logger,
		interval:    defaultRetentionInterval,
		defaultDays: defaultDays,
		now:         time.Now,
	}, nil
}

// Start prunes on startup and then once per interval until cancellation.
func (s *RetentionService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce prunes every table independently; one table failing must not stop
// the others.
func (s *RetentionService) RunOnce(ctx context.Context) {
	days := s.retentionDays(ctx)
	cutoff := s.now().UTC().AddDate(0, 0, -days)

	s.logger.Info("pruning sms bookkeeping tables",
		zap.Int("retentionDays", days),
		zap.Time("cutoff", cutoff),
	)

	tables := []struct {
		name  string
		prune func(context.Context, time.Time) (int64, error)
	}{
		{name: "sms_outbound_audit", prune: s.audits.PruneBefore},
		{name: "message_status", prune: s.statuses.PruneBefore},
		{name: "reminders_log", prune: s.reminders.PruneBefore},
	}

	for _, table := range tables {
		deleted, err := table.prune(ctx, cutoff)
		if err != nil {
			s.logger.Error("retention prune failed",
				zap.String("table", table.name),
				zap.Error(err),
			)
			continue
		}
		if deleted > 0 {
			s.metrics.AddAuditPruned(table.name, deleted)
			s.logger.Info("pruned aged rows",
				zap.String("table", table.name),
				zap.Int64("rows", deleted),
			)
		}
	}
}

func (s *RetentionService) retentionDays(ctx context.Context) int {
	value, err := s.settings.Get(ctx, repository.SettingAuditRetentionDays)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("retention setting lookup failed, using default", zap.Error(err))
		}
		return s.defaultDays
	}

	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		s.logger.Warn("retention setting is not a positive integer, using default",
			zap.String("value", value),
		)
		return s.defaultDays
	}
	return days
}
