package visits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homevia/homevia-backend/pkg/db/models"
	"github.com/homevia/homevia-backend/pkg/enums"
)

// Repository persists visit rows. As in the rest of the codebase, updates to
// status-bearing columns are compare-and-set: the WHERE clause repeats the
// expected current value and the caller checks whether a row actually moved.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, visit *models.Visit) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Visit, error)
	FindPropertyByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.VisitStatus, at time.Time, updates map[string]any) (bool, error)
	ListStalePending(ctx context.Context, now time.Time, limit int) ([]models.Visit, error)
	ListReminderCandidates(ctx context.Context, limit int) ([]models.Visit, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, visit *models.Visit) error {
	return r.db.WithContext(ctx).Create(visit).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Visit, error) {
	var visit models.Visit
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&visit).Error
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

func (r *repositoryImpl) FindPropertyByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&property).Error
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *repositoryImpl) Transition(ctx context.Context, id uuid.UUID, from, to enums.VisitStatus, at time.Time, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":                 to,
		"last_status_changed_at": at,
	}
	for column, value := range updates {
		values[column] = value
	}
	res := r.db.WithContext(ctx).
		Model(&models.Visit{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repositoryImpl) ListStalePending(ctx context.Context, now time.Time, limit int) ([]models.Visit, error) {
	var rows []models.Visit
	query := r.db.WithContext(ctx).
		Where("status = ? AND expiry_date < ?", enums.VisitStatusPending, now).
		Order("expiry_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) ListReminderCandidates(ctx context.Context, limit int) ([]models.Visit, error) {
	var rows []models.Visit
	query := r.db.WithContext(ctx).
		Where("status = ? AND approved_slot IS NOT NULL AND reminder_sent_at IS NULL", enums.VisitStatusApproved).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkReminderSent is first-write-wins: the IS NULL guard makes a second
// attempt a no-op even across concurrent workers.
func (r *repositoryImpl) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Visit{}).
		Where("id = ? AND status = ? AND reminder_sent_at IS NULL", id, enums.VisitStatusApproved).
		UpdateColumn("reminder_sent_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
