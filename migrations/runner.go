package migrations

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migration is one ordered, named schema change. Statements run inside a
// single transaction together with the ledger insert, so a migration is
// either fully applied and recorded or not applied at all.
type Migration struct {
	ID         string
	Name       string
	Statements []string
}

// Summary reports one runner pass: ids applied this run, ids skipped
// because the ledger already holds them, and the id that failed (if any).
type Summary struct {
	Applied []string
	Skipped []string
	Failed  string
}

type Runner struct {
	pool       *pgxpool.Pool
	logger     *zap.SugaredLogger
	migrations []Migration
}

func NewRunner(pool *pgxpool.Pool, logger *zap.SugaredLogger, migrations []Migration) (*Runner, error) {
	ordered := append([]Migration(nil), migrations...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	seen := make(map[string]struct{}, len(ordered))
	for _, m := range ordered {
		if m.ID == "" {
			return nil, fmt.Errorf("migrations: migration %q has no id", m.Name)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("migrations: duplicate migration id %s", m.ID)
		}
		seen[m.ID] = struct{}{}
	}

	if pool == nil {
		return nil, fmt.Errorf("migrations: pool is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Runner{pool: pool, logger: logger, migrations: ordered}, nil
}

func (r *Runner) ensureLedger(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("migrations: ensure ledger: %w", err)
	}
	return nil
}

// Applied returns the set of migration ids recorded in the ledger.
func (r *Runner) Applied(ctx context.Context) (map[string]time.Time, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("migrations: query ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("migrations: scan ledger: %w", err)
		}
		applied[id] = at
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("migrations: read ledger: %w", rows.Err())
	}
	return applied, nil
}

// Run applies every pending migration in id order and stops at the first
// failure. The returned summary is valid even when err is non-nil.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return &Summary{}, err
	}

	summary := &Summary{
		Applied: make([]string, 0, len(r.migrations)),
		Skipped: make([]string, 0, len(r.migrations)),
	}

	for _, migration := range r.migrations {
		if _, done := applied[migration.ID]; done {
			summary.Skipped = append(summary.Skipped, migration.ID)
			continue
		}

		if err := r.apply(ctx, migration); err != nil {
			summary.Failed = migration.ID
			r.logger.Errorw("migration failed", "id", migration.ID, "name", migration.Name, "error", err)
			return summary, fmt.Errorf("migrations: apply %s: %w", migration.ID, err)
		}

		summary.Applied = append(summary.Applied, migration.ID)
		r.logger.Infow("migration applied", "id", migration.ID, "name", migration.Name)
	}

	return summary, nil
}

func (r *Runner) apply(ctx context.Context, migration Migration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range migration.Statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}

	const record = `INSERT INTO schema_migrations (id, name, applied_at) VALUES ($1, $2, NOW())`
	if _, err := tx.Exec(ctx, record, migration.ID, migration.Name); err != nil {
		return fmt.Errorf("record in ledger: %w", err)
	}

	return tx.Commit(ctx)
}
