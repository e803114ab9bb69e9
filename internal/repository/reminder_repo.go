package repository

import (
	"context"
	"time"

	"github.com/walkweek/walkweek/internal/storage"
	"gorm.io/gorm"
)

type ReminderLogRepository interface {
	AlreadySentOn(ctx context.Context, userID int64, date string) (bool, error)
	Create(ctx context.Context, userID int64, date, when string) error
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormReminderLogRepo struct {
	db     *gorm.DB
	runner *storage.Runner
}

func NewGormReminderLogRepo(db *gorm.DB, runner *storage.Runner) *GormReminderLogRepo {
	return &GormReminderLogRepo{db: db, runner: runner}
}

func (r *GormReminderLogRepo) AlreadySentOn(ctx context.Context, userID int64, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ReminderLogModel{}).
		Where("user_id = ? AND sent_on_date = ?", userID, date).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormReminderLogRepo) Create(ctx context.Context, userID int64, date, when string) error {
	entry := ReminderLogModel{
		UserID:     userID,
		SentOnDate: date,
		WhenSent:   when,
		CreatedAt:  time.Now().UTC(),
	}
	return r.runner.Run(ctx, func(tx *gorm.DB) error {
		return tx.Create(&entry).Error
	})
}

func (r *GormReminderLogRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.runner.Run(ctx, func(tx *gorm.DB) error {
		res := tx.Where("created_at < ?", cutoff).Delete(&ReminderLogModel{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
