package enums

import "fmt"

// TransactionType distinguishes the token payment from the final settlement.
type TransactionType string

const (
	TransactionTypeToken TransactionType = "token"
	TransactionTypeFinal TransactionType = "final"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeToken,
	TransactionTypeFinal,
}

// IsValid checks whether the given type matches the canonical enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw strings into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransactionStatus maps to the transaction_status enum in Postgres.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// IsValid checks whether the given status matches the canonical enum.
func (t TransactionStatus) IsValid() bool {
	return t == TransactionStatusSuccess || t == TransactionStatusFailed
}
