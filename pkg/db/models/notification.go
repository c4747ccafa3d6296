package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/homevia/homevia-backend/pkg/db/types"
	"github.com/homevia/homevia-backend/pkg/enums"
)

// Notification stores in-app notification payloads per recipient. Rows are
// never deleted; read state and email delivery outcome are the only
// mutations after insert.
type Notification struct {
	ID          uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	ActorID     *uuid.UUID                 `gorm:"column:actor_id;type:uuid"`
	Title       string                     `gorm:"type:text;not null"`
	Message     string                     `gorm:"type:text;not null"`
	Type        enums.NotificationType     `gorm:"column:type;type:notification_type;not null"`
	Priority    enums.NotificationPriority `gorm:"column:priority;type:notification_priority;not null;default:'normal'"`
	Channels    dbtypes.ChannelList        `gorm:"column:channels;type:jsonb;serializer:json"`
	IsRead      bool                       `gorm:"column:is_read;not null;default:false"`
	EmailSent   bool                       `gorm:"column:email_sent;not null;default:false"`
	EmailStatus *enums.EmailStatus         `gorm:"column:email_status;type:email_status"`
	RelatedType *string                    `gorm:"column:related_type;type:text"`
	RelatedID   *uuid.UUID                 `gorm:"column:related_id;type:uuid"`
	CreatedAt   time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
