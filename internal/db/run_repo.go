package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"aquaplan/internal/types"
)

// RunRepository provides data access for the runs table.
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a RunRepository backed by the given connection
// (pool or transaction).
func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, kind, status, seed, request, result, COALESCE(error, ''),
	duration_ms, created_at, completed_at`

// Create inserts a run. Seeds are stored as BIGINT; values above MaxInt64
// wrap and are restored bit-for-bit by Get.
func (r *RunRepository) Create(ctx context.Context, run *types.Run) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO runs (id, kind, status, seed, request, result, error,
		 duration_ms, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()), $10)`,
		run.ID,
		string(run.Kind),
		string(run.Status),
		int64(run.Seed),
		nilIfEmptyJSON(run.Request),
		nilIfEmptyJSON(run.Result),
		nilIfEmptyString(run.Error),
		run.DurationMS,
		nilIfZeroTime(run.CreatedAt),
		run.CompletedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create run", err)
	}
	return nil
}

// Get returns the run with the given id or ErrCodeNotFoundRun.
func (r *RunRepository) Get(ctx context.Context, id string) (*types.Run, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM runs WHERE id = $1`, runColumns),
		id,
	)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRun, "run not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve run", err)
	}
	return run, nil
}

// Complete moves a queued run to complete and stores its result.
func (r *RunRepository) Complete(ctx context.Context, id string, result json.RawMessage, duration time.Duration) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE runs SET status = $1, result = $2, duration_ms = $3, completed_at = NOW()
		 WHERE id = $4 AND status = $5`,
		string(types.RunStatusComplete),
		nilIfEmptyJSON(result),
		duration.Milliseconds(),
		id,
		string(types.RunStatusQueued),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to complete run", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRun, "run not found or already finished", nil)
	}
	return nil
}

// Fail moves a queued run to failed and records the error message.
func (r *RunRepository) Fail(ctx context.Context, id string, message string, duration time.Duration) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, duration_ms = $3, completed_at = NOW()
		 WHERE id = $4 AND status = $5`,
		string(types.RunStatusFailed),
		message,
		duration.Milliseconds(),
		id,
		string(types.RunStatusQueued),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark run as failed", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRun, "run not found or already finished", nil)
	}
	return nil
}

// scanRun scans a run from a single pgx.Row. Column order must match runColumns.
func scanRun(row pgx.Row) (*types.Run, error) {
	var (
		run         types.Run
		kind        string
		status      string
		seed        int64
		request     []byte
		result      []byte
		completedAt *time.Time
	)
	err := row.Scan(
		&run.ID,
		&kind,
		&status,
		&seed,
		&request,
		&result,
		&run.Error,
		&run.DurationMS,
		&run.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Kind = types.RunKind(kind)
	run.Status = types.RunStatus(status)
	run.Seed = uint64(seed)
	if len(request) > 0 {
		run.Request = json.RawMessage(request)
	}
	if len(result) > 0 {
		run.Result = json.RawMessage(result)
	}
	run.CompletedAt = completedAt
	return &run, nil
}

func nilIfEmptyString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfEmptyJSON(b json.RawMessage) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
