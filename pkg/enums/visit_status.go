package enums

import "fmt"

// VisitStatus maps to the visit_status enum in Postgres.
type VisitStatus string

const (
	VisitStatusPending         VisitStatus = "pending"
	VisitStatusApproved        VisitStatus = "approved"
	VisitStatusRejected        VisitStatus = "rejected"
	VisitStatusCounterProposed VisitStatus = "counter_proposed"
	VisitStatusCompleted       VisitStatus = "completed"
	VisitStatusCancelled       VisitStatus = "cancelled"
	VisitStatusExpired         VisitStatus = "expired"
)

var validVisitStatuses = []VisitStatus{
	VisitStatusPending,
	VisitStatusApproved,
	VisitStatusRejected,
	VisitStatusCounterProposed,
	VisitStatusCompleted,
	VisitStatusCancelled,
	VisitStatusExpired,
}

// IsValid checks whether the given status matches the canonical enum.
func (v VisitStatus) IsValid() bool {
	for _, candidate := range validVisitStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition, manual or scheduled,
// may leave this status.
func (v VisitStatus) IsTerminal() bool {
	switch v {
	case VisitStatusRejected, VisitStatusCompleted, VisitStatusCancelled, VisitStatusExpired:
		return true
	}
	return false
}

// ParseVisitStatus converts raw strings into VisitStatus.
func ParseVisitStatus(value string) (VisitStatus, error) {
	for _, candidate := range validVisitStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid visit status %q", value)
}
