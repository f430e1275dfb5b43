package rates

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"savings/internal/core"
)

// Table is a fixed snapshot of exchange rates expressed as units per USD.
type Table struct {
	mu     sync.RWMutex
	perUSD map[string]decimal.Decimal
}

var _ Provider = (*Table)(nil)

var defaultRates = map[string]string{
	"USD": "1",
	"EUR": "0.92",
	"GBP": "0.79",
	"JPY": "149.50",
	"CHF": "0.88",
	"CAD": "1.36",
	"AUD": "1.52",
}

// NewTable builds a table from units-per-USD rates. Non-positive rates are skipped.
func NewTable(perUSD map[string]decimal.Decimal) *Table {
	t := &Table{perUSD: make(map[string]decimal.Decimal, len(perUSD)+1)}
	for code, r := range perUSD {
		t.set(code, r)
	}
	if _, ok := t.perUSD[Reference]; !ok {
		t.perUSD[Reference] = decimal.NewFromInt(1)
	}
	return t
}

// DefaultTable returns a table seeded with a built-in snapshot of common currencies.
func DefaultTable() *Table {
	m := make(map[string]decimal.Decimal, len(defaultRates))
	for code, r := range defaultRates {
		m[code] = decimal.RequireFromString(r)
	}
	return NewTable(m)
}

// LoadTable reads "CODE RATE" lines from path. Blank lines and lines starting
// with # are ignored. A missing or empty file yields the default table.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultTable(), nil
		}
		return nil, fmt.Errorf("open rates file: %w", err)
	}
	defer f.Close()

	m := map[string]decimal.Decimal{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("rates file line %d: expected CODE RATE", lineNo)
		}
		r, err := decimal.NewFromString(fields[1])
		if err != nil || !r.IsPositive() {
			return nil, fmt.Errorf("rates file line %d: invalid rate %q", lineNo, fields[1])
		}
		m[core.NormalizeCurrency(fields[0])] = r
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read rates file: %w", err)
	}
	if len(m) == 0 {
		return DefaultTable(), nil
	}
	return NewTable(m), nil
}

// Set replaces the rate of a single currency.
func (t *Table) Set(code string, perUSD decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(code, perUSD)
}

func (t *Table) set(code string, perUSD decimal.Decimal) {
	code = core.NormalizeCurrency(code)
	if code == "" || !perUSD.IsPositive() {
		return
	}
	t.perUSD[code] = perUSD
}

// Currencies lists the supported codes.
func (t *Table) Currencies() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.perUSD))
	for code := range t.perUSD {
		out = append(out, code)
	}
	return out
}

func (t *Table) Rate(from, to string) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, tt, err := t.lookup(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return tt.Div(f), nil
}

func (t *Table) Convert(amount decimal.Decimal, from, to string) (Conversion, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, tt, err := t.lookup(from, to)
	if err != nil {
		return Conversion{}, err
	}
	from, to = core.NormalizeCurrency(from), core.NormalizeCurrency(to)
	// Multiply before dividing so exact snapshots stay exact.
	converted := core.RoundCents(amount.Mul(tt).Div(f))
	return Conversion{
		Amount: converted,
		Rate:   tt.Div(f),
		From:   from,
		To:     to,
	}, nil
}

func (t *Table) lookup(from, to string) (decimal.Decimal, decimal.Decimal, error) {
	f, ok := t.perUSD[core.NormalizeCurrency(from)]
	if !ok {
		return decimal.Zero, decimal.Zero, notFound(from)
	}
	tt, ok := t.perUSD[core.NormalizeCurrency(to)]
	if !ok {
		return decimal.Zero, decimal.Zero, notFound(to)
	}
	return f, tt, nil
}
