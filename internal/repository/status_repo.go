package repository

import (
	"context"
	"errors"
	"time"

	"github.com/walkweek/walkweek/internal/domain"
	"github.com/walkweek/walkweek/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatusRepository interface {
	// Upsert records a delivery-status callback, replacing any earlier
	// status for the same provider SID.
	Upsert(ctx context.Context, s *domain.DeliveryStatus) error
	GetByMessageSID(ctx context.Context, sid string) (*domain.DeliveryStatus, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormStatusRepo struct {
	db     *gorm.DB
	runner *storage.Runner
}

func NewGormStatusRepo(db *gorm.DB, runner *storage.Runner) *GormStatusRepo {
	return &GormStatusRepo{db: db, runner: runner}
}

func (r *GormStatusRepo) Upsert(ctx context.Context, s *domain.DeliveryStatus) error {
	model := statusModelFromDomain(s)
	if model == nil || model.MessageSID == "" {
		return errors.New("message sid is required")
	}
	if model.ReceivedAtUTC.IsZero() {
		model.ReceivedAtUTC = time.Now().UTC()
	}

	err := r.runner.Run(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "message_sid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"message_status", "to_number", "from_number", "error_code",
				"error_message", "messaging_service_sid", "account_sid",
				"api_version", "raw_payload", "received_at_utc",
			}),
		}).Create(model).Error
	})
	if err != nil {
		return err
	}

	*s = *statusModelToDomain(model)
	return nil
}

func (r *GormStatusRepo) GetByMessageSID(ctx context.Context, sid string) (*domain.DeliveryStatus, error) {
	var model MessageStatusModel
	err := r.db.WithContext(ctx).Where("message_sid = ?", sid).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return statusModelToDomain(&model), nil
}

func (r *GormStatusRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.runner.Run(ctx, func(tx *gorm.DB) error {
		res := tx.Where("received_at_utc < ?", cutoff).Delete(&MessageStatusModel{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
