// Package rates supplies currency validation and conversion to the ledger.
package rates

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Reference is the currency every supported code must convert to.
const Reference = "USD"

var ErrCurrencyNotFound = errors.New("currency not found")

type (
	// Provider validates currency codes and converts amounts between them.
	Provider interface {
		// Rate returns how many units of to one unit of from buys.
		Rate(from, to string) (decimal.Decimal, error)
		// Convert converts amount from one currency to another.
		Convert(amount decimal.Decimal, from, to string) (Conversion, error)
	}

	Conversion struct {
		Amount decimal.Decimal // converted amount, rounded to cents
		Rate   decimal.Decimal
		From   string
		To     string
	}
)

func notFound(code string) error {
	return fmt.Errorf("%w: %q", ErrCurrencyNotFound, code)
}
