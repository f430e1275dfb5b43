package backend

import (
	"context"
	"slices"

	"savings/internal/amqp"
	"savings/internal/ledger"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult carries everything the ledger is wired to.
type BackendResult struct {
	Store      ledger.Store
	Publishers []ledger.Publisher
	// AMQP is nil when no broker is configured or reachable; the contribution
	// worker only runs when it is set.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional AMQP
	AMQP amqp.Config

	// Optional Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// BackendType represents the type of goal store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	return slices.Contains(GetBackendTypes(), bt)
}
