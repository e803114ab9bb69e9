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

// Settings keys used by the outbound pipeline.
const (
	SettingReminderMorning    = "reminders.default_morning"
	SettingReminderEvening    = "reminders.default_evening"
	SettingAuditRetentionDays = "sms.audit_retention_days"
)

type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type GormSettingsRepo struct {
	db     *gorm.DB
	runner *storage.Runner
}

func NewGormSettingsRepo(db *gorm.DB, runner *storage.Runner) *GormSettingsRepo {
	return &GormSettingsRepo{db: db, runner: runner}
}

func (r *GormSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var model SettingModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if model.Value == nil {
		return "", domain.ErrNotFound
	}
	return *model.Value, nil
}

func (r *GormSettingsRepo) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	model := SettingModel{Key: key, Value: &value, UpdatedAt: &now}

	return r.runner.Run(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&model).Error
	})
}
