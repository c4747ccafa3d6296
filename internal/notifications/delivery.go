package notifications

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homevia/homevia-backend/pkg/db/models"
	"github.com/homevia/homevia-backend/pkg/email"
	"github.com/homevia/homevia-backend/pkg/enums"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
	"github.com/homevia/homevia-backend/pkg/logger"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Deliverer sends the email leg of a notification and records the outcome.
type Deliverer struct {
	repo   Repository
	users  userFinder
	sender email.Sender
	logg   *logger.Logger
}

// NewDeliverer wires the email delivery dependencies. A nil sender disables
// delivery; notifications are then marked failed so operators can see the gap.
func NewDeliverer(repo Repository, users userFinder, sender email.Sender, logg *logger.Logger) (*Deliverer, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Deliverer{repo: repo, users: users, sender: sender, logg: logg}, nil
}

// DeliverEmail attempts delivery for one notification. The outcome is
// recorded on the row; a failed send never bubbles up as a processing error
// because the in-app notification already committed.
func (d *Deliverer) DeliverEmail(ctx context.Context, notificationID uuid.UUID) error {
	row, err := d.repo.FindByID(ctx, notificationID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"notification_id": row.ID.String(),
		"user_id":         row.UserID.String(),
	})

	// Redelivered messages are acked without a second send.
	if row.EmailStatus != nil {
		d.logg.Info(logCtx, "email outcome already recorded, skipping")
		return nil
	}
	if !row.Channels.Has(enums.NotificationChannelEmail) {
		d.logg.Info(logCtx, "notification has no email channel, skipping")
		return nil
	}

	user, err := d.users.FindByID(ctx, row.UserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return d.recordFailure(logCtx, row.ID, "recipient not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
	}

	if _, err := mail.ParseAddress(user.Email); err != nil {
		return d.recordFailure(logCtx, row.ID, "malformed recipient address")
	}
	if d.sender == nil {
		return d.recordFailure(logCtx, row.ID, "email relay not configured")
	}

	if err := d.sender.Send(ctx, user.Email, row.Title, row.Message); err != nil {
		deliveryErr := pkgerrors.Wrap(pkgerrors.CodeDeliveryFailed, err, "send notification email")
		d.logg.Error(logCtx, "email delivery failed", deliveryErr)
		return d.recordFailure(logCtx, row.ID, deliveryErr.Error())
	}

	if err := d.repo.RecordEmailResult(ctx, row.ID, enums.EmailStatusSent, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record email result")
	}
	d.logg.Info(logCtx, "notification email delivered")
	return nil
}

func (d *Deliverer) recordFailure(ctx context.Context, id uuid.UUID, reason string) error {
	d.logg.Warn(d.logg.WithField(ctx, "reason", reason), "notification email not delivered")
	if err := d.repo.RecordEmailResult(ctx, id, enums.EmailStatusFailed, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record email failure")
	}
	return nil
}
