package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/walkweek/walkweek/internal/domain"
	"github.com/walkweek/walkweek/internal/observability"
	"github.com/walkweek/walkweek/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultReminderInterval = time.Minute

	reminderBody = "Reminder to report steps. Reply with a number or HELP."
)

// Sender is the outbound port the scheduler needs; satisfied by
// OutboundService.
type Sender interface {
	Send(ctx context.Context, to, body string, mediaURLs ...string) string
}

// ReminderScheduler sends each opted-in user at most one step reminder per
// day, at the wall-clock minute the user picked.
type ReminderScheduler struct {
	users    repository.UserRepository
	log      repository.ReminderLogRepository
	settings repository.SettingsRepository
	sender   Sender
	metrics  *observability.Metrics
	logger   *zap.Logger

	location       *time.Location
	interval       time.Duration
	defaultMorning string
	defaultEvening string
	now            func() time.Time
}

func NewReminderScheduler(
	users repository.UserRepository,
	log repository.ReminderLogRepository,
	settings repository.SettingsRepository,
	sender Sender,
	location *time.Location,
	defaultMorning, defaultEvening string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*ReminderScheduler, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if log == nil {
		return nil, fmt.Errorf("reminder log repository is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if location == nil {
		location = time.UTC
	}
	if defaultMorning == "" {
		defaultMorning = "07:30"
	}
	if defaultEvening == "" {
		defaultEvening = "20:00"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderScheduler{
		users:          users,
		log:            log,
		settings:       settings,
		sender:         sender,
		metrics:        metrics,
		logger:         logger,
		location:       location,
		interval:       defaultReminderInterval,
		defaultMorning: defaultMorning,
		defaultEvening: defaultEvening,
		now:            time.Now,
	}, nil
}

// Start runs reminder scans until context cancellation.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("reminder scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("reminder scan failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs one scan: users due at the current wall-clock minute that
// have not already been reminded today get one reminder each.
func (s *ReminderScheduler) RunOnce(ctx context.Context) error {
	now := s.now().In(s.location)
	date := now.Format("2006-01-02")

	users, err := s.users.ListReminderRecipients(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reminder recipients: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	morning := s.setting(ctx, repository.SettingReminderMorning, s.defaultMorning)
	evening := s.setting(ctx, repository.SettingReminderEvening, s.defaultEvening)

	for i := range users {
		user := users[i]
		if user.RemindersWhen == "" || user.PhoneE164 == "" {
			continue
		}

		due, err := clockEquals(user.RemindersWhen.Resolve(morning, evening), now.Format("15:04"))
		if err != nil {
			s.logger.Warn("skipping user with unparseable reminder time",
				zap.Int64("userId", user.ID),
				zap.String("when", user.RemindersWhen.String()),
			)
			continue
		}
		if !due {
			continue
		}

		alreadySent, err := s.log.AlreadySentOn(ctx, user.ID, date)
		if err != nil {
			s.logger.Error("reminder dedupe check failed",
				zap.Int64("userId", user.ID),
				zap.Error(err),
			)
			continue
		}
		if alreadySent {
			continue
		}

		sid := s.sender.Send(ctx, user.PhoneE164, reminderBody)
		if sid == "" {
			s.logger.Warn("reminder was not sent",
				zap.Int64("userId", user.ID),
			)
			continue
		}

		if err := s.log.Create(ctx, user.ID, date, user.RemindersWhen.String()); err != nil {
			// The reminder went out; a missing log row means the user may be
			// reminded again today, which beats losing the send.
			s.logger.Error("failed to record sent reminder",
				zap.Int64("userId", user.ID),
				zap.Error(err),
			)
			continue
		}

		s.metrics.IncReminderSent()
		s.logger.Info("reminder sent",
			zap.Int64("userId", user.ID),
			zap.String("sid", sid),
		)
	}

	return nil
}

func (s *ReminderScheduler) setting(ctx context.Context, key, fallback string) string {
	value, err := s.settings.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("settings lookup failed, using default",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return fallback
	}
	return value
}

// clockEquals compares two HH:MM strings numerically so "7:05" and "07:05"
// are the same minute.
func clockEquals(a, b string) (bool, error) {
	ah, am, err := domain.ParseClockTime(a)
	if err != nil {
		return false, err
	}
	bh, bm, err := domain.ParseClockTime(b)
	if err != nil {
		return false, err
	}
	return ah == bh && am == bm, nil
}
