// Package notifications creates, lists, and delivers per-user notifications.
// Rows are written inside the caller's transaction; email delivery is handed
// off through the outbox so a relay outage never fails a deal operation.
package notifications

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homevia/homevia-backend/pkg/db/models"
	dbtypes "github.com/homevia/homevia-backend/pkg/db/types"
	"github.com/homevia/homevia-backend/pkg/enums"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
	"github.com/homevia/homevia-backend/pkg/outbox"
	"github.com/homevia/homevia-backend/pkg/pagination"
)

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines notification list/read operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Dispatcher creates notifications inside a caller-owned transaction.
type Dispatcher interface {
	Dispatch(ctx context.Context, tx *gorm.DB, input DispatchInput) (*models.Notification, error)
}

type service struct {
	repo    Repository
	emitter outboxEmitter
}

// DispatchInput describes a notification to create.
type DispatchInput struct {
	UserID      uuid.UUID
	ActorID     *uuid.UUID
	Title       string
	Message     string
	Type        enums.NotificationType
	Priority    enums.NotificationPriority
	Channels    dbtypes.ChannelList
	RelatedType *string
	RelatedID   *uuid.UUID
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// EmailQueuedPayload is the outbox payload carried by notification.created events.
type EmailQueuedPayload struct {
	NotificationID uuid.UUID `json:"notificationId"`
	UserID         uuid.UUID `json:"userId"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository, emitter outboxEmitter) (*service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: repo, emitter: emitter}, nil
}

// Dispatch persists the notification row and queues email fan-out when the
// email channel is requested. Must run inside the caller's transaction so the
// row commits or rolls back with the triggering operation.
func (s *service) Dispatch(ctx context.Context, tx *gorm.DB, input DispatchInput) (*models.Notification, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient user id required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}

	priority := input.Priority
	if priority == "" {
		priority = enums.NotificationPriorityNormal
	}
	channels := input.Channels
	if len(channels) == 0 {
		channels = dbtypes.ChannelList{enums.NotificationChannelInApp}
	}

	row := models.Notification{
		UserID:      input.UserID,
		ActorID:     input.ActorID,
		Title:       input.Title,
		Message:     input.Message,
		Type:        input.Type,
		Priority:    priority,
		Channels:    channels,
		RelatedType: input.RelatedType,
		RelatedID:   input.RelatedID,
	}
	if err := s.repo.WithTx(tx).Create(ctx, &row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	if channels.Has(enums.NotificationChannelEmail) {
		event := outbox.DomainEvent{
			EventType:     enums.EventNotificationCreated,
			AggregateType: enums.AggregateNotification,
			AggregateID:   row.ID,
			Data: EmailQueuedPayload{
				NotificationID: row.ID,
				UserID:         row.UserID,
			},
			Version: 1,
		}
		if input.ActorID != nil {
			event.Actor = &outbox.ActorRef{UserID: *input.ActorID}
		}
		if err := s.emitter.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue notification email")
		}
	}

	return &row, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      pagination.LimitWithBuffer(params.Limit),
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
