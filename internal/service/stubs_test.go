package service

import (
	"context"
	"errors"
	"time"

	"github.com/walkweek/walkweek/internal/domain"
)

// Interface stubs embedded by the test fakes so each fake only spells out
// the methods its test exercises.

var errStubNotImplemented = errors.New("stub: not implemented")

type UserRepositoryStub struct{}

func (UserRepositoryStub) Create(ctx context.Context, u *domain.User) error {
	return errStubNotImplemented
}

func (UserRepositoryStub) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (UserRepositoryStub) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (UserRepositoryStub) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	return false, nil
}

func (UserRepositoryStub) ListReminderRecipients(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

func (UserRepositoryStub) SetOptedOut(ctx context.Context, userID int64, optedOut bool) error {
	return errStubNotImplemented
}

type AuditRepositoryStub struct{}

func (AuditRepositoryStub) Create(ctx context.Context, a *domain.OutboundAudit) error {
	return errStubNotImplemented
}

func (AuditRepositoryStub) ListByDestination(ctx context.Context, to string, page, pageSize int) ([]domain.OutboundAudit, int64, error) {
	return nil, 0, nil
}

func (AuditRepositoryStub) GetByProviderSID(ctx context.Context, sid string) (*domain.OutboundAudit, error) {
	return nil, domain.ErrNotFound
}

func (AuditRepositoryStub) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type ReminderLogRepositoryStub struct{}

func (ReminderLogRepositoryStub) AlreadySentOn(ctx context.Context, userID int64, date string) (bool, error) {
	return false, nil
}

func (ReminderLogRepositoryStub) Create(ctx context.Context, userID int64, date, when string) error {
	return errStubNotImplemented
}

func (ReminderLogRepositoryStub) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type StatusRepositoryStub struct{}

func (StatusRepositoryStub) Upsert(ctx context.Context, s *domain.DeliveryStatus) error {
	return errStubNotImplemented
}

func (StatusRepositoryStub) GetByMessageSID(ctx context.Context, sid string) (*domain.DeliveryStatus, error) {
	return nil, domain.ErrNotFound
}

func (StatusRepositoryStub) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type SettingsRepositoryStub struct{}

func (SettingsRepositoryStub) Get(ctx context.Context, key string) (string, error) {
	return "", domain.ErrNotFound
}

func (SettingsRepositoryStub) Set(ctx context.Context, key, value string) error {
	return errStubNotImplemented
}
