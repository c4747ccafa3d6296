// Package commission computes the platform and agent fee split for a sale.
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/homevia/homevia-backend/pkg/config"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
)

// Split is the outcome of applying the fee rates to a sale amount.
type Split struct {
	SaleAmount     decimal.Decimal `json:"saleAmount"`
	PlatformRate   decimal.Decimal `json:"platformRate"`
	AgentRate      decimal.Decimal `json:"agentRate"`
	PlatformAmount decimal.Decimal `json:"platformAmount"`
	AgentAmount    decimal.Decimal `json:"agentAmount"`
	SellerNet      decimal.Decimal `json:"sellerNet"`
}

// Calculator applies configured fee rates to sale amounts.
type Calculator struct {
	platformRate decimal.Decimal
	agentRate    decimal.Decimal
}

// NewCalculator parses the configured rates. Rates are fractions of the sale
// amount, e.g. "0.01" for one percent.
func NewCalculator(cfg config.CommissionConfig) (*Calculator, error) {
	platform, err := decimal.NewFromString(cfg.PlatformRate)
	if err != nil {
		return nil, fmt.Errorf("invalid platform rate %q: %w", cfg.PlatformRate, err)
	}
	agent, err := decimal.NewFromString(cfg.AgentRate)
	if err != nil {
		return nil, fmt.Errorf("invalid agent rate %q: %w", cfg.AgentRate, err)
	}
	if platform.IsNegative() || agent.IsNegative() {
		return nil, fmt.Errorf("commission rates must not be negative")
	}
	if platform.Add(agent).GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("combined commission rates must stay below 100%%")
	}
	return &Calculator{platformRate: platform, agentRate: agent}, nil
}

// Calculate returns the fee split for the given sale amount. Amounts are
// rounded half-up to two decimal places.
func (c *Calculator) Calculate(saleAmount decimal.Decimal) (*Split, error) {
	if !saleAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale amount must be positive").
			WithDetails(map[string]any{"saleAmount": saleAmount.String()})
	}

	platformAmount := saleAmount.Mul(c.platformRate).Round(2)
	agentAmount := saleAmount.Mul(c.agentRate).Round(2)

	return &Split{
		SaleAmount:     saleAmount,
		PlatformRate:   c.platformRate,
		AgentRate:      c.agentRate,
		PlatformAmount: platformAmount,
		AgentAmount:    agentAmount,
		SellerNet:      saleAmount.Sub(platformAmount).Sub(agentAmount),
	}, nil
}
