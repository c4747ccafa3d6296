package enums

import "fmt"

// PropertyStatus maps to the property_status enum in Postgres.
type PropertyStatus string

const (
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusReserved PropertyStatus = "reserved"
	PropertyStatusSold     PropertyStatus = "sold"
)

var validPropertyStatuses = []PropertyStatus{
	PropertyStatusActive,
	PropertyStatusReserved,
	PropertyStatusSold,
}

// IsValid checks whether the given status matches the canonical enum.
func (p PropertyStatus) IsValid() bool {
	for _, candidate := range validPropertyStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePropertyStatus converts raw strings into PropertyStatus.
func ParsePropertyStatus(value string) (PropertyStatus, error) {
	for _, candidate := range validPropertyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid property status %q", value)
}
