package enums

import "fmt"

// DealPaymentType classifies a payment ledger entry.
type DealPaymentType string

const (
	DealPaymentTypeToken   DealPaymentType = "token"
	DealPaymentTypeBalance DealPaymentType = "balance"
)

var validDealPaymentTypes = []DealPaymentType{
	DealPaymentTypeToken,
	DealPaymentTypeBalance,
}

// IsValid checks whether the given type matches the canonical enum.
func (d DealPaymentType) IsValid() bool {
	for _, candidate := range validDealPaymentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDealPaymentType converts raw strings into DealPaymentType.
func ParseDealPaymentType(value string) (DealPaymentType, error) {
	for _, candidate := range validDealPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deal payment type %q", value)
}

// VerificationStatus tracks reconciliation state on a deal payment.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
)

// IsValid checks whether the given status matches the canonical enum.
func (v VerificationStatus) IsValid() bool {
	return v == VerificationStatusPending || v == VerificationStatusVerified
}
