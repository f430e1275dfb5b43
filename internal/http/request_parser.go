package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"savings/internal/core"
	"savings/internal/ledger"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

// DecodeJSON reads a single JSON object into dst, rejecting unknown fields,
// trailing data and oversized bodies. Failures wrap ledger.ErrInvalidInput.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body too large", ledger.ErrInvalidInput)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", ledger.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON: %v", ledger.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", ledger.ErrInvalidInput)
	}
	return nil
}

// ParseAmountField parses a positive decimal amount sent as a string.
func ParseAmountField(field, value string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ledger.ErrInvalidInput, field, err)
	}
	return d, nil
}
