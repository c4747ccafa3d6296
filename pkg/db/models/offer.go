package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/homevia/homevia-backend/pkg/enums"
)

// Offer is a buyer's bid on a property, progressing through token payment
// and final settlement. Document references are attached once generated.
type Offer struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID     uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	PropertyID  uuid.UUID         `gorm:"column:property_id;type:uuid;not null;index"`
	Amount      decimal.Decimal   `gorm:"column:amount;type:numeric(14,2);not null"`
	Status      enums.OfferStatus `gorm:"column:status;type:offer_status;not null;default:'pending'"`
	ReceiptRef  *string           `gorm:"column:receipt_ref;type:text"`
	SaleDeedRef *string           `gorm:"column:sale_deed_ref;type:text"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
