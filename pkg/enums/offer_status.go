package enums

import "fmt"

// OfferStatus maps to the offer_status enum in Postgres.
type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusTokenPaid OfferStatus = "token_paid"
	OfferStatusCompleted OfferStatus = "completed"
	OfferStatusRejected  OfferStatus = "rejected"
)

var validOfferStatuses = []OfferStatus{
	OfferStatusPending,
	OfferStatusAccepted,
	OfferStatusTokenPaid,
	OfferStatusCompleted,
	OfferStatusRejected,
}

// IsValid checks whether the given status matches the canonical enum.
func (o OfferStatus) IsValid() bool {
	for _, candidate := range validOfferStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// CanTransitionTo encodes the offer state machine:
// pending -> accepted -> token_paid -> completed, with rejected reachable
// from pending and accepted. No transition skips a step.
func (o OfferStatus) CanTransitionTo(next OfferStatus) bool {
	switch o {
	case OfferStatusPending:
		return next == OfferStatusAccepted || next == OfferStatusRejected
	case OfferStatusAccepted:
		return next == OfferStatusTokenPaid || next == OfferStatusRejected
	case OfferStatusTokenPaid:
		return next == OfferStatusCompleted
	}
	return false
}

// ParseOfferStatus converts raw strings into OfferStatus.
func ParseOfferStatus(value string) (OfferStatus, error) {
	for _, candidate := range validOfferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer status %q", value)
}
