package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/walkweek/walkweek/internal/domain"
	"github.com/walkweek/walkweek/internal/storage"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	// IsOptedOut is the consent gate read. Unknown destinations are not
	// opted out: the gate only blocks an explicit refusal.
	IsOptedOut(ctx context.Context, phone string) (bool, error)
	ListReminderRecipients(ctx context.Context) ([]domain.User, error)
	SetOptedOut(ctx context.Context, userID int64, optedOut bool) error
}

type GormUserRepo struct {
	db     *gorm.DB
	runner *storage.Runner
}

func NewGormUserRepo(db *gorm.DB, runner *storage.Runner) *GormUserRepo {
	return &GormUserRepo{db: db, runner: runner}
}

func (r *GormUserRepo) Create(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("user is required")
	}
	if err := u.Validate(); err != nil {
		return err
	}

	model := userModelFromDomain(u)
	err := r.runner.Run(ctx, func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		return err
	}

	*u = *userModelToDomain(model)
	return nil
}

func (r *GormUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}

func (r *GormUserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("phone_e164 = ?", phone).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}

func (r *GormUserRepo) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	var optedOut bool
	err := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Select("phone_opted_out").
		Where("phone_e164 = ?", phone).
		Limit(1).
		Scan(&optedOut).Error
	if err != nil {
		return false, err
	}
	return optedOut, nil
}

func (r *GormUserRepo) ListReminderRecipients(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	err := r.db.WithContext(ctx).
		Where("reminders_enabled = ? AND phone_opted_out = ? AND phone_e164 IS NOT NULL", true, false).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(models))
	for i := range models {
		users = append(users, *userModelToDomain(&models[i]))
	}

	return users, nil
}

// SetOptedOut flips the consent flag and appends the STOP/START row to the
// consent log in one transaction, so the flag and its history never diverge.
func (r *GormUserRepo) SetOptedOut(ctx context.Context, userID int64, optedOut bool) error {
	action := domain.ConsentStart
	if optedOut {
		action = domain.ConsentStop
	}

	return r.runner.Run(ctx, func(tx *gorm.DB) error {
		var model UserModel
		if err := tx.First(&model, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		if err := tx.Model(&UserModel{}).
			Where("id = ?", userID).
			Update("phone_opted_out", optedOut).Error; err != nil {
			return fmt.Errorf("failed to update consent flag: %w", err)
		}

		phone := ""
		if model.PhoneE164 != nil {
			phone = *model.PhoneE164
		}

		entry := ConsentLogModel{
			UserID:      userID,
			Action:      string(action),
			PhoneNumber: phone,
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append consent log: %w", err)
		}

		return nil
	})
}
