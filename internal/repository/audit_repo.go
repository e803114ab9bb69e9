package repository

import (
	"context"
	"errors"
	"time"

	"github.com/walkweek/walkweek/internal/domain"
	"github.com/walkweek/walkweek/internal/storage"
	"gorm.io/gorm"
)

type AuditRepository interface {
	Create(ctx context.Context, a *domain.OutboundAudit) error
	ListByDestination(ctx context.Context, to string, page, pageSize int) ([]domain.OutboundAudit, int64, error)
	GetByProviderSID(ctx context.Context, sid string) (*domain.OutboundAudit, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormAuditRepo struct {
	db     *gorm.DB
	runner *storage.Runner
}

func NewGormAuditRepo(db *gorm.DB, runner *storage.Runner) *GormAuditRepo {
	return &GormAuditRepo{db: db, runner: runner}
}

// Create appends one audit row. The insert runs through the transaction
// runner so lock contention from concurrent writers is retried instead of
// losing the record.
func (r *GormAuditRepo) Create(ctx context.Context, a *domain.OutboundAudit) error {
	model := auditModelFromDomain(a)
	if model == nil {
		return errors.New("audit record is required")
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}

	err := r.runner.Run(ctx, func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		return err
	}

	*a = *auditModelToDomain(model)
	return nil
}

func (r *GormAuditRepo) ListByDestination(ctx context.Context, to string, page, pageSize int) ([]domain.OutboundAudit, int64, error) {
	query := r.db.WithContext(ctx).Model(&OutboundAuditModel{})
	if to != "" {
		query = query.Where("to_number = ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []OutboundAuditModel
	err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.OutboundAudit, 0, len(models))
	for i := range models {
		records = append(records, *auditModelToDomain(&models[i]))
	}

	return records, total, nil
}

func (r *GormAuditRepo) GetByProviderSID(ctx context.Context, sid string) (*domain.OutboundAudit, error) {
	var model OutboundAuditModel
	err := r.db.WithContext(ctx).Where("sid = ?", sid).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return auditModelToDomain(&model), nil
}

func (r *GormAuditRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.runner.Run(ctx, func(tx *gorm.DB) error {
		res := tx.Where("created_at < ?", cutoff).Delete(&OutboundAuditModel{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
