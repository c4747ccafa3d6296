package deals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homevia/homevia-backend/pkg/db/models"
	"github.com/homevia/homevia-backend/pkg/enums"
)

// Repository exposes persistence helpers for offers, properties, and the
// payment ledger rows hanging off them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOffer(ctx context.Context, offer *models.Offer) error
	FindOfferByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	TransitionOffer(ctx context.Context, id uuid.UUID, from, to enums.OfferStatus, updates map[string]any) (bool, error)
	FindPropertyByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	TransitionProperty(ctx context.Context, id uuid.UUID, from, to enums.PropertyStatus) (bool, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	AttachTransactionDocument(ctx context.Context, transactionID uuid.UUID, documentRef string) error
	CreateDealPayment(ctx context.Context, payment *models.DealPayment) error
	ListTransactionsByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Transaction, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a deals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateOffer(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repositoryImpl) FindOfferByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var row models.Offer
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// TransitionOffer flips the offer status only when the row is still in the
// expected state. Concurrent double-submissions lose the compare-and-set and
// see a false return.
func (r *repositoryImpl) TransitionOffer(ctx context.Context, id uuid.UUID, from, to enums.OfferStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for column, value := range updates {
		values[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindPropertyByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var row models.Property
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// TransitionProperty mirrors TransitionOffer for the property status gate.
func (r *repositoryImpl) TransitionProperty(ctx context.Context, id uuid.UUID, from, to enums.PropertyStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumn("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repositoryImpl) AttachTransactionDocument(ctx context.Context, transactionID uuid.UUID, documentRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", transactionID).
		UpdateColumn("document_ref", documentRef).Error
}

func (r *repositoryImpl) CreateDealPayment(ctx context.Context, payment *models.DealPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repositoryImpl) ListTransactionsByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
