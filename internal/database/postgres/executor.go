package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablekit/partgen/pkg/logger"
)

// Executor applies a generated statement list inside one transaction,
// so a mid-script failure leaves no partial child set behind.
type Executor struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

func NewExecutor(pool *pgxpool.Pool, log *logger.Logger) *Executor {
	return &Executor{pool: pool, logger: log}
}

// Apply runs every statement in order and commits. The returned run ID
// tags the log lines of this application.
func (e *Executor) Apply(ctx context.Context, statements []string) (string, error) {
	runID := uuid.New().String()
	if len(statements) == 0 {
		e.logger.Warnf("run %s: nothing to apply", runID)
		return runID, nil
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return runID, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			e.logger.Errorf("run %s: statement %d/%d failed: %v", runID, i+1, len(statements), err)
			return runID, fmt.Errorf("error executing statement %d of %d: %w", i+1, len(statements), err)
		}
		e.logger.Debugf("run %s: applied statement %d/%d", runID, i+1, len(statements))
	}

	if err := tx.Commit(ctx); err != nil {
		return runID, fmt.Errorf("error committing transaction: %w", err)
	}
	e.logger.Infof("run %s: applied %d statements", runID, len(statements))
	return runID, nil
}
