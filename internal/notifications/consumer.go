package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/homevia/homevia-backend/pkg/enums"
	"github.com/homevia/homevia-backend/pkg/logger"
	"github.com/homevia/homevia-backend/pkg/outbox"
)

type emailDeliverer interface {
	DeliverEmail(ctx context.Context, notificationID uuid.UUID) error
}

// Consumer drains notification.created events and sends the email leg.
type Consumer struct {
	deliverer    emailDeliverer
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer builds the email fan-out consumer.
func NewConsumer(deliverer emailDeliverer, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("email deliverer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		deliverer:    deliverer,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventNotificationCreated) {
		c.logg.Info(logCtx, "skipping non-notification event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	var payload EmailQueuedPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithField(logCtx, "notification_id", payload.NotificationID.String())

	if err := c.deliverer.DeliverEmail(ctx, payload.NotificationID); err != nil {
		c.logg.Error(logCtx, "email delivery processing failed", err)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}
