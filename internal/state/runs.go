package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// StoredRun is a run read back from the history.
type StoredRun struct {
	Result  *models.AggregatedResult `json:"result"`
	Request models.Request           `json:"request"`
}

// RunSummary is one row of a history listing.
type RunSummary struct {
	ID          string           `json:"id"`
	Description string           `json:"description,omitempty"`
	State       models.RunState  `json:"state"`
	Cause       models.ErrorKind `json:"cause,omitempty"`
	Topology    models.Topology  `json:"topology"`
	Stages      int              `json:"stages"`
	Priority    int              `json:"priority"`
	TaskCount   int              `json:"task_count"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	State models.RunState
	Limit int
}

// SaveRun records a run and its tasks, replacing any earlier copy.
func (db *DB) SaveRun(ctx context.Context, res *models.AggregatedResult, req models.Request) error {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	slotsJSON, err := json.Marshal(res.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_tasks WHERE run_id = ?`, res.RunID); err != nil {
			return fmt.Errorf("replace run %s: %w", res.RunID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, res.RunID); err != nil {
			return fmt.Errorf("replace run %s: %w", res.RunID, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, description, state, cause, error, topology, policy, stages, priority, request, slots, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, res.RunID, res.Description, string(res.State), string(res.Cause), res.Error,
			string(res.Topology), string(res.Policy), res.Stages, req.Priority,
			string(reqJSON), string(slotsJSON), formatTime(res.StartedAt), formatNullableTime(res.FinishedAt))
		if err != nil {
			return fmt.Errorf("save run %s: %w", res.RunID, err)
		}

		for i := range res.Tasks {
			if err := insertTask(ctx, tx, &res.Tasks[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertTask(ctx context.Context, tx *sql.Tx, t *models.Task) error {
	var attempts, result sql.NullString
	if len(t.Attempts) > 0 {
		data, err := json.Marshal(t.Attempts)
		if err != nil {
			return fmt.Errorf("encode attempts of %s: %w", t.ID, err)
		}
		attempts = sql.NullString{String: string(data), Valid: true}
	}
	if len(t.Result) > 0 {
		result = sql.NullString{String: string(t.Result), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO run_tasks (id, run_id, stage, capability, state, agent_id, served_by, attempts, result, error, error_kind, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.RunID, t.Stage, string(t.Capability), string(t.State), t.AgentID, t.ServedBy,
		attempts, result, t.Error, string(t.ErrorKind),
		formatTime(t.CreatedAt), formatNullableTime(t.StartedAt), formatNullableTime(t.FinishedAt))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// GetRun reads a run and its tasks. It returns ErrNotFound for unknown IDs.
func (db *DB) GetRun(id string) (*StoredRun, error) {
	row := db.QueryRow(`
		SELECT id, description, state, cause, error, topology, policy, stages, request, slots, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	res := &models.AggregatedResult{}
	var reqJSON, slotsJSON, startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&res.RunID, &res.Description, &res.State, &res.Cause, &res.Error,
		&res.Topology, &res.Policy, &res.Stages, &reqJSON, &slotsJSON, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	stored := &StoredRun{Result: res}
	if err := json.Unmarshal([]byte(reqJSON), &stored.Request); err != nil {
		return nil, fmt.Errorf("decode request of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(slotsJSON), &res.Slots); err != nil {
		return nil, fmt.Errorf("decode slots of %s: %w", id, err)
	}
	res.StartedAt, _ = parseTime(startedAt)
	res.FinishedAt = parseNullableTime(finishedAt)

	res.Tasks, err = db.ListRunTasks(id)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListRunTasks returns the tasks of a run ordered by ID.
func (db *DB) ListRunTasks(runID string) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT id, run_id, stage, capability, state, agent_id, served_by, attempts, result, error, error_kind, created_at, started_at, finished_at
		FROM run_tasks WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		var attempts, result, startedAt, finishedAt sql.NullString
		var createdAt string
		if err := rows.Scan(&t.ID, &t.RunID, &t.Stage, &t.Capability, &t.State, &t.AgentID, &t.ServedBy,
			&attempts, &result, &t.Error, &t.ErrorKind, &createdAt, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		if attempts.Valid {
			if err := json.Unmarshal([]byte(attempts.String), &t.Attempts); err != nil {
				return nil, fmt.Errorf("decode attempts of %s: %w", t.ID, err)
			}
		}
		if result.Valid {
			t.Result = json.RawMessage(result.String)
		}
		t.CreatedAt, _ = parseTime(createdAt)
		t.StartedAt = parseNullableTime(startedAt)
		t.FinishedAt = parseNullableTime(finishedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListRuns returns run summaries, newest first.
func (db *DB) ListRuns(filter RunFilter) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.description, r.state, r.cause, r.topology, r.stages, r.priority, r.started_at, r.finished_at,
			(SELECT COUNT(*) FROM run_tasks t WHERE t.run_id = r.id)
		FROM runs r`
	var where []string
	var args []any
	if filter.State != "" {
		where = append(where, "r.state = ?")
		args = append(args, string(filter.State))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.started_at DESC, r.id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.Description, &s.State, &s.Cause, &s.Topology, &s.Stages, &s.Priority,
			&startedAt, &finishedAt, &s.TaskCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt, _ = parseTime(startedAt)
		s.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// PurgeOldRuns deletes runs started before now minus olderThan, with their
// tasks. Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(context.Background(), func(tx *sql.Tx) error {
		// Pooled connections may not have foreign keys enabled, so tasks
		// are removed explicitly rather than through the cascade.
		if _, err := tx.Exec(`
			DELETE FROM run_tasks WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
		`, cutoff); err != nil {
			return fmt.Errorf("purge old run tasks: %w", err)
		}
		result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("purge old runs: %w", err)
		}
		count, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return count, err
}
