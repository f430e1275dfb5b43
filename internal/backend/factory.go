package backend

import (
	"context"
	"errors"
	"fmt"

	"savings/internal/amqp"
	"savings/internal/log"
	"savings/internal/sheets"
	gsheet "savings/internal/sheets/google"
	"savings/internal/storage"
	"savings/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger

	dialAMQP  func(amqp.Config, *log.Logger) (*amqp.Client, error)
	newSheets func(ctx context.Context, spreadsheetID, sheetName string) (sheets.RowAppender, error)
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger:   logger.WithComponent(log.ComponentBackend),
		dialAMQP: amqp.NewClient,
		newSheets: func(ctx context.Context, id, name string) (sheets.RowAppender, error) {
			return gsheet.New(ctx, id, name)
		},
	}
}

// CreateBackend builds the goal store and the optional event publishers.
// Optional integrations that fail to start are logged and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &BackendResult{}
	var closers []func() error

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, storage.WithLogger(f.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res.Store = repo
		closers = append(closers, repo.Close)
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		res.Store = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if config.AMQP.URL != "" {
		client, err := f.dialAMQP(config.AMQP, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			res.AMQP = client
			res.Publishers = append(res.Publishers, client)
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQP.Exchange,
				"queue", config.AMQP.ContributionQueue)
		}
	}

	if config.GoogleSpreadsheetID != "" {
		rows, err := f.newSheets(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets export, continuing without it", "error", err)
		} else {
			res.Publishers = append(res.Publishers, sheets.NewExporter(rows))
			f.logger.Info("Initialized Google Sheets export", "sheet", config.GoogleSheetName)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return res, nil
}
