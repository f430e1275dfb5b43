package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"savings/internal/core"
	"savings/internal/ledger"
	"savings/internal/log"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// Option configures a SQLiteRepository.
type Option func(*SQLiteRepository)

// WithLogger tags l with the storage component and logs through it.
func WithLogger(l *log.Logger) Option {
	return func(r *SQLiteRepository) {
		if l != nil {
			r.logger = l.WithComponent(log.ComponentStorage)
		}
	}
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY between ledger mutations.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r := &SQLiteRepository{db: db, logger: log.Discard().WithComponent(log.ComponentStorage)}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveGoal upserts the goal row and appends contributions that are not stored yet.
func (r *SQLiteRepository) SaveGoal(ctx context.Context, g core.Goal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, name, description, target_amount, current_amount, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			target_amount = excluded.target_amount,
			current_amount = excluded.current_amount,
			currency = excluded.currency,
			updated_at = excluded.updated_at`,
		g.ID, g.UserID, g.Name, g.Description,
		g.TargetAmount.String(), g.CurrentAmount.String(), g.Currency,
		g.CreatedAt.UTC().Format(timeLayout), g.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert goal: %w", err)
	}

	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM goal_contributions WHERE goal_id = ?`, g.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count contributions: %w", err)
	}
	for i := stored; i < len(g.Contributions); i++ {
		c := g.Contributions[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO goal_contributions (goal_id, position, amount, currency, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			g.ID, i, c.Amount.String(), c.Currency, c.Timestamp.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert contribution %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.DebugContext(ctx, "Goal saved to SQLite",
		log.FieldGoalID, g.ID,
		log.FieldUserID, g.UserID,
		"contributions_added", len(g.Contributions)-stored)
	return nil
}

// LoadGoals returns every goal with its contributions, oldest goal first.
func (r *SQLiteRepository) LoadGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, target_amount, current_amount, currency, created_at, updated_at
		FROM goals ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	index := map[string]int{}
	for rows.Next() {
		var (
			g                   core.Goal
			target, current     string
			createdAt, updateAt string
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &target, &current, &g.Currency, &createdAt, &updateAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("goal %s target amount: %w", g.ID, err)
		}
		if g.CurrentAmount, err = decimal.NewFromString(current); err != nil {
			return nil, fmt.Errorf("goal %s current amount: %w", g.ID, err)
		}
		if g.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("goal %s created_at: %w", g.ID, err)
		}
		if g.UpdatedAt, err = time.Parse(timeLayout, updateAt); err != nil {
			return nil, fmt.Errorf("goal %s updated_at: %w", g.ID, err)
		}
		g.Contributions = []core.Contribution{}
		index[g.ID] = len(goals)
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}

	if err := r.loadContributions(ctx, goals, index); err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *SQLiteRepository) loadContributions(ctx context.Context, goals []core.Goal, index map[string]int) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT goal_id, amount, currency, created_at
		FROM goal_contributions ORDER BY goal_id, position`)
	if err != nil {
		return fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var goalID, amount, currency, createdAt string
		if err := rows.Scan(&goalID, &amount, &currency, &createdAt); err != nil {
			return fmt.Errorf("scan contribution: %w", err)
		}
		i, ok := index[goalID]
		if !ok {
			continue
		}
		c := core.Contribution{Currency: currency}
		if c.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("goal %s contribution amount: %w", goalID, err)
		}
		if c.Timestamp, err = time.Parse(timeLayout, createdAt); err != nil {
			return fmt.Errorf("goal %s contribution time: %w", goalID, err)
		}
		goals[i].Contributions = append(goals[i].Contributions, c)
	}
	return rows.Err()
}
