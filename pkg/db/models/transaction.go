package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/homevia/homevia-backend/pkg/enums"
)

// Transaction is the immutable record of one payment event. The only
// permitted mutation is attaching the generated document reference.
type Transaction struct {
	ID          uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID     uuid.UUID               `gorm:"column:offer_id;type:uuid;not null;index"`
	BuyerID     uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Method      string                  `gorm:"column:method;type:text;not null"`
	Type        enums.TransactionType   `gorm:"column:type;type:transaction_type;not null"`
	Status      enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'success'"`
	DocumentRef *string                 `gorm:"column:document_ref;type:text"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}
