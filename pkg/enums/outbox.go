package enums

// OutboxEventType names a domain event queued for publication.
type OutboxEventType string

const (
	EventNotificationCreated OutboxEventType = "notification.created"
	EventOfferTokenPaid      OutboxEventType = "offer.token_paid"
	EventOfferCompleted      OutboxEventType = "offer.completed"
	EventVisitExpired        OutboxEventType = "visit.expired"
)

// IsValid checks whether the given type matches the canonical enum.
func (o OutboxEventType) IsValid() bool {
	switch o {
	case EventNotificationCreated, EventOfferTokenPaid, EventOfferCompleted, EventVisitExpired:
		return true
	}
	return false
}

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateNotification OutboxAggregateType = "notification"
	AggregateOffer        OutboxAggregateType = "offer"
	AggregateVisit        OutboxAggregateType = "visit"
)

// IsValid checks whether the given type matches the canonical enum.
func (o OutboxAggregateType) IsValid() bool {
	switch o {
	case AggregateNotification, AggregateOffer, AggregateVisit:
		return true
	}
	return false
}
