package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/homevia/homevia-backend/pkg/enums"
)

// Visit is a scheduled property viewing request. Rows are never hard-deleted;
// terminal statuses keep the audit trail intact.
type Visit struct {
	ID                  uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RequesterID         uuid.UUID         `gorm:"column:requester_id;type:uuid;not null;index"`
	PropertyID          uuid.UUID         `gorm:"column:property_id;type:uuid;not null;index"`
	Status              enums.VisitStatus `gorm:"column:status;type:visit_status;not null;default:'pending'"`
	ExpiryDate          time.Time         `gorm:"column:expiry_date;not null"`
	ApprovedSlot        *string           `gorm:"column:approved_slot;type:text"`
	ReminderSentAt      *time.Time        `gorm:"column:reminder_sent_at"`
	LastStatusChangedAt time.Time         `gorm:"column:last_status_changed_at;not null"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
