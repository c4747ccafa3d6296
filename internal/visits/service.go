// Package visits manages property viewing requests: the buyer-facing
// lifecycle plus the two time-driven sweeps (expiry and reminders) the cron
// worker runs.
package visits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/homevia/homevia-backend/internal/notifications"
	"github.com/homevia/homevia-backend/pkg/config"
	"github.com/homevia/homevia-backend/pkg/db/models"
	dbtypes "github.com/homevia/homevia-backend/pkg/db/types"
	"github.com/homevia/homevia-backend/pkg/enums"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
	"github.com/homevia/homevia-backend/pkg/logger"
	"github.com/homevia/homevia-backend/pkg/outbox"
)

// slotFormats are tried in order when parsing approved_slot. Older rows carry
// the short form without a zone; those are read as UTC.
var slotFormats = []string{time.RFC3339, "2006-01-02 15:04"}

const expiryBatchLimit = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes the visit lifecycle and the scheduled sweeps.
type Service interface {
	Request(ctx context.Context, requesterID uuid.UUID, input RequestInput) (*models.Visit, error)
	Approve(ctx context.Context, actorID, visitID uuid.UUID, slot string) (*models.Visit, error)
	Reject(ctx context.Context, actorID, visitID uuid.UUID) (*models.Visit, error)
	CounterPropose(ctx context.Context, actorID, visitID uuid.UUID, slot string) (*models.Visit, error)
	Complete(ctx context.Context, actorID, visitID uuid.UUID) (*models.Visit, error)
	Cancel(ctx context.Context, actorID, visitID uuid.UUID) (*models.Visit, error)
	ExpireStale(ctx context.Context, now time.Time) (int, error)
	SendDueReminders(ctx context.Context, now time.Time) (int, error)
}

// RequestInput carries a new viewing request.
type RequestInput struct {
	PropertyID uuid.UUID
}

// ExpiredPayload is the outbox payload for visit.expired events.
type ExpiredPayload struct {
	VisitID     uuid.UUID `json:"visitId"`
	PropertyID  uuid.UUID `json:"propertyId"`
	RequesterID uuid.UUID `json:"requesterId"`
	ExpiredAt   time.Time `json:"expiredAt"`
}

type service struct {
	tx         txRunner
	repo       Repository
	dispatcher notifications.Dispatcher
	emitter    outboxEmitter
	cfg        config.VisitsConfig
	logg       *logger.Logger
}

// NewService wires the visit lifecycle dependencies.
func NewService(tx txRunner, repo Repository, dispatcher notifications.Dispatcher, emitter outboxEmitter, cfg config.VisitsConfig, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("visits repository required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, dispatcher: dispatcher, emitter: emitter, cfg: cfg, logg: logg}, nil
}

func (s *service) Request(ctx context.Context, requesterID uuid.UUID, input RequestInput) (*models.Visit, error) {
	if requesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester identity missing")
	}
	if input.PropertyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property id required")
	}

	var visit *models.Visit
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		property, err := repo.FindPropertyByID(ctx, input.PropertyID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
		}
		if property.Status != enums.PropertyStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "property is not open for viewings")
		}

		now := time.Now().UTC()
		row := models.Visit{
			ID:                  uuid.New(),
			RequesterID:         requesterID,
			PropertyID:          input.PropertyID,
			Status:              enums.VisitStatusPending,
			ExpiryDate:          now.Add(s.cfg.RequestTTL),
			LastStatusChangedAt: now,
		}
		if err := repo.Create(ctx, &row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create visit")
		}

		if err := s.notifyVisit(ctx, tx, property.SellerID, &requesterID, row.ID,
			"New visit request",
			fmt.Sprintf("A buyer requested a viewing of %s", property.Title),
			enums.NotificationPriorityNormal,
		); err != nil {
			return err
		}

		visit = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visit, nil
}

func (s *service) Approve(ctx context.Context, actorID, visitID uuid.UUID, slot string) (*models.Visit, error) {
	if _, err := parseSlot(slot); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "approved slot must be a valid timestamp")
	}
	return s.decide(ctx, actorID, visitID, enums.VisitStatusApproved, map[string]any{"approved_slot": slot},
		"Visit approved",
		fmt.Sprintf("Your visit was approved for %s", slot),
	)
}

func (s *service) Reject(ctx context.Context, actorID, visitID uuid.UUID) (*models.Visit, error) {
	return s.decide(ctx, actorID, visitID, enums.VisitStatusRejected, nil,
		"Visit rejected",
		"Your visit request was declined.",
	)
}

func (s *service) CounterPropose(ctx context.Context, actorID, visitID uuid.UUID, slot string) (*models.Visit, error) {
	if _, err := parseSlot(slot); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proposed slot must be a valid timestamp")
	}
	return s.decide(ctx, actorID, visitID, enums.VisitStatusCounterProposed, map[string]any{"approved_slot": slot},
		"Alternative slot proposed",
		fmt.Sprintf("The seller proposed %s instead", slot),
	)
}

func (s *service) Complete(ctx context.Context, actorID, visitID uuid.UUID) (*models.Visit, error) {
	return s.decide(ctx, actorID, visitID, enums.VisitStatusCompleted, nil,
		"Visit completed",
		"Your visit was marked as completed.",
	)
}

// Cancel is the one lifecycle action the requester may take themselves.
func (s *service) Cancel(ctx context.Context, actorID, visitID uuid.UUID) (*models.Visit, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity missing")
	}
	if visitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "visit id required")
	}

	var visit *models.Visit
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, property, err := s.loadVisit(ctx, repo, visitID)
		if err != nil {
			return err
		}
		if row.RequesterID != actorID && !actorManagesProperty(actorID, property) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "visit belongs to a different user")
		}
		if !canTransitionVisit(row.Status, enums.VisitStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("visit cannot be cancelled from %s", row.Status))
		}

		now := time.Now().UTC()
		moved, err := repo.Transition(ctx, row.ID, row.Status, enums.VisitStatusCancelled, now, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update visit status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "visit state changed concurrently")
		}
		row.Status = enums.VisitStatusCancelled
		row.LastStatusChangedAt = now

		recipient := property.SellerID
		if row.RequesterID != actorID {
			recipient = row.RequesterID
		}
		if err := s.notifyVisit(ctx, tx, recipient, &actorID, row.ID,
			"Visit cancelled",
			"The scheduled visit was cancelled.",
			enums.NotificationPriorityNormal,
		); err != nil {
			return err
		}

		visit = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visit, nil
}

func (s *service) decide(ctx context.Context, actorID, visitID uuid.UUID, target enums.VisitStatus, updates map[string]any, title, message string) (*models.Visit, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity missing")
	}
	if visitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "visit id required")
	}

	var visit *models.Visit
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, property, err := s.loadVisit(ctx, repo, visitID)
		if err != nil {
			return err
		}
		if !actorManagesProperty(actorID, property) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller or listing agent can manage visits")
		}
		if !canTransitionVisit(row.Status, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("visit cannot move from %s to %s", row.Status, target))
		}

		now := time.Now().UTC()
		moved, err := repo.Transition(ctx, row.ID, row.Status, target, now, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update visit status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "visit state changed concurrently")
		}
		row.Status = target
		row.LastStatusChangedAt = now
		if slot, ok := updates["approved_slot"].(string); ok {
			row.ApprovedSlot = &slot
		}

		if err := s.notifyVisit(ctx, tx, row.RequesterID, &actorID, row.ID, title, message, enums.NotificationPriorityNormal); err != nil {
			return err
		}

		visit = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visit, nil
}

// ExpireStale moves every pending visit whose expiry date has passed to
// expired. Each row commits in its own transaction so a failed row rolls
// back whole, stays pending and is retried on the next sweep without holding
// the rest back. Scans repeat until the backlog drains. Returns the number of
// visits expired.
func (s *service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	var expired int
	var rowErrs error

	for {
		rows, err := s.repo.ListStalePending(ctx, now, expiryBatchLimit)
		if err != nil {
			return expired, multierr.Append(rowErrs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan stale visits"))
		}
		if len(rows) == 0 {
			break
		}

		failed := 0
		for i := range rows {
			visit := rows[i]
			var moved bool
			err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
				var err error
				moved, err = s.expireOne(ctx, tx, s.repo.WithTx(tx), visit, now)
				return err
			})
			if err != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"visit_id": visit.ID.String(),
					"error":    err.Error(),
				})
				s.logg.Warn(logCtx, "visit expiry failed for row")
				rowErrs = multierr.Append(rowErrs, fmt.Errorf("visit %s: %w", visit.ID, err))
				failed++
				continue
			}
			if moved {
				expired++
			}
		}

		if len(rows) < expiryBatchLimit {
			break
		}
		// failed rows stay pending and would be re-listed; stop when a full
		// pass made no progress
		if failed == len(rows) {
			break
		}
	}
	return expired, rowErrs
}

func (s *service) expireOne(ctx context.Context, tx *gorm.DB, repo Repository, visit models.Visit, now time.Time) (bool, error) {
	moved, err := repo.Transition(ctx, visit.ID, enums.VisitStatusPending, enums.VisitStatusExpired, now, nil)
	if err != nil {
		return false, err
	}
	if !moved {
		// someone decided the visit between the scan and the update
		return false, nil
	}

	if err := s.notifyVisit(ctx, tx, visit.RequesterID, nil, visit.ID,
		"Visit request expired",
		"Your visit request expired before the seller responded.",
		enums.NotificationPriorityLow,
	); err != nil {
		return false, err
	}

	err = s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventVisitExpired,
		AggregateType: enums.AggregateVisit,
		AggregateID:   visit.ID,
		Data: ExpiredPayload{
			VisitID:     visit.ID,
			PropertyID:  visit.PropertyID,
			RequesterID: visit.RequesterID,
			ExpiredAt:   now,
		},
		Version: 1,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// SendDueReminders notifies requesters whose approved visit falls inside the
// configured window around 24 hours from now. The reminder_sent_at guard in
// MarkReminderSent makes the reminder once-only even if two sweeps overlap.
// Each reminder commits in its own transaction so one failure does not hold
// back the rest. Returns the number of reminders sent.
func (s *service) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.repo.ListReminderCandidates(ctx, expiryBatchLimit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan reminder candidates")
	}

	var sent int
	var rowErrs error
	for i := range rows {
		visit := rows[i]
		if visit.ApprovedSlot == nil {
			continue
		}

		slot, err := parseSlot(*visit.ApprovedSlot)
		if err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"visit_id": visit.ID.String(),
				"slot":     *visit.ApprovedSlot,
			})
			s.logg.Warn(logCtx, "skipping visit with unparseable slot")
			continue
		}

		untilVisit := slot.Sub(now)
		if untilVisit < s.cfg.ReminderWindowMin || untilVisit > s.cfg.ReminderWindowMax {
			continue
		}

		var marked bool
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			var err error
			marked, err = repo.MarkReminderSent(ctx, visit.ID, now)
			if err != nil {
				return err
			}
			if !marked {
				return nil
			}
			return s.notifyVisit(ctx, tx, visit.RequesterID, nil, visit.ID,
				"Visit reminder",
				fmt.Sprintf("Your property visit is scheduled for %s", *visit.ApprovedSlot),
				enums.NotificationPriorityHigh,
			)
		})
		if err != nil {
			rowErrs = multierr.Append(rowErrs, fmt.Errorf("visit %s: %w", visit.ID, err))
			continue
		}
		// counted only after the row's transaction committed
		if marked {
			sent++
		}
	}
	return sent, rowErrs
}

func (s *service) loadVisit(ctx context.Context, repo Repository, visitID uuid.UUID) (*models.Visit, *models.Property, error) {
	row, err := repo.FindByID(ctx, visitID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "visit not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load visit")
	}
	property, err := repo.FindPropertyByID(ctx, row.PropertyID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
	}
	return row, property, nil
}

func (s *service) notifyVisit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, actorID *uuid.UUID, visitID uuid.UUID, title, message string, priority enums.NotificationPriority) error {
	relatedType := "visit"
	notifType := enums.NotificationTypeVisitUpdate
	if priority == enums.NotificationPriorityHigh {
		notifType = enums.NotificationTypeReminder
	}
	_, err := s.dispatcher.Dispatch(ctx, tx, notifications.DispatchInput{
		UserID:      userID,
		ActorID:     actorID,
		Title:       title,
		Message:     message,
		Type:        notifType,
		Priority:    priority,
		Channels:    dbtypes.ChannelList{enums.NotificationChannelInApp, enums.NotificationChannelEmail},
		RelatedType: &relatedType,
		RelatedID:   &visitID,
	})
	return err
}

// canTransitionVisit encodes the visit state machine. Expiry is a scheduled
// transition and is listed here so the sweep shares the same table.
func canTransitionVisit(from, to enums.VisitStatus) bool {
	switch from {
	case enums.VisitStatusPending:
		switch to {
		case enums.VisitStatusApproved, enums.VisitStatusRejected, enums.VisitStatusCounterProposed, enums.VisitStatusExpired:
			return true
		}
	case enums.VisitStatusApproved:
		switch to {
		case enums.VisitStatusCompleted, enums.VisitStatusCancelled:
			return true
		}
	}
	return false
}

func actorManagesProperty(actorID uuid.UUID, property *models.Property) bool {
	if property.SellerID == actorID {
		return true
	}
	return property.AgentID != nil && *property.AgentID == actorID
}

func parseSlot(value string) (time.Time, error) {
	for _, layout := range slotFormats {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized slot format %q", value)
}
