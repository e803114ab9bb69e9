package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pruningAuditRepo struct {
	AuditRepositoryStub

	cutoffs  []time.Time
	deleted  int64
	pruneErr error
}

func (f *pruningAuditRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.pruneErr
}

type pruningStatusRepo struct {
	StatusRepositoryStub

	calls int
}

func (f *pruningStatusRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	return 0, nil
}

type pruningReminderLog struct {
	ReminderLogRepositoryStub

	calls int
}

func (f *pruningReminderLog) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	return 2, nil
}

func newRetention(t *testing.T, audits *pruningAuditRepo, settings *fakeSettings, at time.Time) (*RetentionService, *pruningStatusRepo, *pruningReminderLog) {
	t.Helper()

	statuses := &pruningStatusRepo{}
	reminders := &pruningReminderLog{}

	s, err := NewRetentionService(audits, statuses, reminders, settings, 90, nil, nil)
	if err != nil {
		t.Fatalf("NewRetentionService() error = %v", err)
	}
	s.now = func() time.Time { return at }
	return s, statuses, reminders
}

func TestRetentionRunOnce_UsesDefaultRetention(t *testing.T) {
	t.Parallel()

	audits := &pruningAuditRepo{deleted: 5}
	at := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	s, statuses, reminders := newRetention(t, audits, &fakeSettings{}, at)

	s.RunOnce(context.Background())

	if len(audits.cutoffs) != 1 {
		t.Fatalf("audit prune calls = %d, want 1", len(audits.cutoffs))
	}
	wantCutoff := at.AddDate(0, 0, -90)
	if !audits.cutoffs[0].Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", audits.cutoffs[0], wantCutoff)
	}
	if statuses.calls != 1 || reminders.calls != 1 {
		t.Fatalf("status/reminder prune calls = %d/%d, want 1/1", statuses.calls, reminders.calls)
	}
}

func TestRetentionRunOnce_SettingOverridesDefault(t *testing.T) {
	t.Parallel()

	audits := &pruningAuditRepo{}
	settings := &fakeSettings{values: map[string]string{
		"sms.audit_retention_days": "30",
	}}
	at := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	s, _, _ := newRetention(t, audits, settings, at)

	s.RunOnce(context.Background())

	wantCutoff := at.AddDate(0, 0, -30)
	if !audits.cutoffs[0].Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", audits.cutoffs[0], wantCutoff)
	}
}

func TestRetentionRunOnce_BadSettingFallsBack(t *testing.T) {
	t.Parallel()

	audits := &pruningAuditRepo{}
	settings := &fakeSettings{values: map[string]string{
		"sms.audit_retention_days": "ninety",
	}}
	at := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	s, _, _ := newRetention(t, audits, settings, at)

	s.RunOnce(context.Background())

	wantCutoff := at.AddDate(0, 0, -90)
	if !audits.cutoffs[0].Equal(wantCutoff) {
		t.Fatalf("cutoff = %v, want %v", audits.cutoffs[0], wantCutoff)
	}
}

func TestRetentionRunOnce_TableFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	audits := &pruningAuditRepo{pruneErr: errors.New("database is locked")}
	at := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	s, statuses, reminders := newRetention(t, audits, &fakeSettings{}, at)

	s.RunOnce(context.Background())

	if statuses.calls != 1 || reminders.calls != 1 {
		t.Fatalf("remaining tables pruned %d/%d times, want 1/1", statuses.calls, reminders.calls)
	}
}
