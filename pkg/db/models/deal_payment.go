package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/homevia/homevia-backend/pkg/enums"
)

// DealPayment is the append-only audit ledger row created alongside each
// Transaction for reconciliation.
type DealPayment struct {
	ID                 uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID            uuid.UUID                `gorm:"column:offer_id;type:uuid;not null;index"`
	TransactionID      uuid.UUID                `gorm:"column:transaction_id;type:uuid;not null"`
	Type               enums.DealPaymentType    `gorm:"column:type;type:deal_payment_type;not null"`
	Amount             decimal.Decimal          `gorm:"column:amount;type:numeric(14,2);not null"`
	VerificationStatus enums.VerificationStatus `gorm:"column:verification_status;type:verification_status;not null;default:'pending'"`
	VerifiedAt         *time.Time               `gorm:"column:verified_at"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
}
