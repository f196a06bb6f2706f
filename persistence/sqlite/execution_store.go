package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/workflow"
	_ "modernc.org/sqlite"
)

var _ persistence.ExecutionStore = (*ExecutionStore)(nil)

// ExecutionStore keeps one row per finished execution.
type ExecutionStore struct {
	db *sql.DB
}

// Open opens the database file at path and creates the schema if needed.
func Open(path string) (*ExecutionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	s, err := NewExecutionStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewExecutionStore(db *sql.DB) (*ExecutionStore, error) {
	s := &ExecutionStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s, nil
}

func (s *ExecutionStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			id INTEGER NOT NULL,
			run_id TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			status TEXT NOT NULL,
			input TEXT,
			success INTEGER NOT NULL,
			error_message TEXT,
			queue_time TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT
		);`,
	)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (s *ExecutionStore) Save(ctx context.Context, exec workflow.Execution) error {
	input, err := json.Marshal(exec.Input)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO executions (id, run_id, workflow_name, status, input, success, error_message, queue_time, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID,
		exec.RunID,
		exec.WorkflowName,
		string(exec.Status),
		string(input),
		exec.Success,
		exec.ErrorMessage,
		formatTime(exec.QueueTime),
		formatTime(exec.StartTime),
		formatTime(exec.EndTime),
	)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

const selectExecution = `
	SELECT id, run_id, workflow_name, status, input, success, error_message, queue_time, start_time, end_time
	FROM executions`

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*workflow.Execution, error) {
	var (
		exec                          workflow.Execution
		status, input, errMsg         sql.NullString
		queueTime, startTime, endTime sql.NullString
	)
	if err := row.Scan(&exec.ID, &exec.RunID, &exec.WorkflowName, &status, &input, &exec.Success,
		&errMsg, &queueTime, &startTime, &endTime); err != nil {
		return nil, err
	}
	exec.Status = workflow.WStatus(status.String)
	exec.ErrorMessage = errMsg.String
	if input.String != "" && input.String != "null" {
		if err := json.Unmarshal([]byte(input.String), &exec.Input); err != nil {
			return nil, fmt.Errorf("decode input of execution %d: %w", exec.ID, err)
		}
	}
	var err error
	if exec.QueueTime, err = parseTime(queueTime.String); err != nil {
		return nil, err
	}
	if exec.StartTime, err = parseTime(startTime.String); err != nil {
		return nil, err
	}
	if exec.EndTime, err = parseTime(endTime.String); err != nil {
		return nil, err
	}
	return &exec, nil
}

// Get returns the latest stored execution with the given id.
func (s *ExecutionStore) Get(ctx context.Context, id int64) (*workflow.Execution, error) {
	row := s.db.QueryRowContext(ctx, selectExecution+` WHERE id = ? ORDER BY rowid DESC LIMIT 1`, id)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: execution %d", persistence.ErrNotFound, id)
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return exec, nil
}

// History returns up to limit executions, newest first. A limit <= 0 returns
// all of them.
func (s *ExecutionStore) History(ctx context.Context, limit int) ([]workflow.Execution, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectExecution+` ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()

	var out []workflow.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		out = append(out, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return out, nil
}

func (s *ExecutionStore) Close() error {
	return s.db.Close()
}
