package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/homevia/homevia-backend/pkg/enums"
)

// Property is the listing a deal revolves around. Listing CRUD lives
// elsewhere; this core mutates only the status column as offers progress.
type Property struct {
	ID        uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID  uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	AgentID   *uuid.UUID           `gorm:"column:agent_id;type:uuid"`
	Title     string               `gorm:"type:text;not null"`
	Address   string               `gorm:"type:text;not null"`
	Price     decimal.Decimal      `gorm:"column:price;type:numeric(14,2);not null"`
	Status    enums.PropertyStatus `gorm:"column:status;type:property_status;not null;default:'active'"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
