package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one pipeline invocation.
type Run struct {
	ID          string     `json:"id"`
	ProductName string     `json:"product_name"`
	Status      string     `json:"status"`
	Scenes      int        `json:"scenes"`
	Error       string     `json:"error,omitempty"`
	ElapsedMS   int64      `json:"elapsed_ms"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AgentRun is the terminal status of one agent within a run.
type AgentRun struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Agent      string    `json:"agent"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*Run, error) {
	r := &Run{}
	var errMsg *string
	err := scanner.Scan(&r.ID, &r.ProductName, &r.Status, &r.Scenes, &errMsg, &r.ElapsedMS, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return r, nil
}

const runColumns = `id, product_name, status, scenes, error, elapsed_ms, started_at, completed_at`

func (s *Store) SaveRun(r *Run) error {
	status := r.Status
	if status == "" {
		status = "running"
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, product_name, status, scenes, error, elapsed_ms)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT(id) DO UPDATE SET
			product_name = excluded.product_name,
			status = excluded.status,
			scenes = excluded.scenes,
			error = excluded.error,
			elapsed_ms = excluded.elapsed_ms`,
		r.ID, r.ProductName, status, r.Scenes, r.Error, r.ElapsedMS)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(id, status string, scenes int, elapsed time.Duration, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, scenes = ?, elapsed_ms = ?, error = NULLIF(?, ''),
		    completed_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, scenes, elapsed.Milliseconds(), errMsg, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", id)
	}
	return nil
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *Store) DeleteRun(id string) error {
	_, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	return err
}

func (s *Store) SaveAgentRun(a *AgentRun) error {
	res, err := s.db.Exec(`
		INSERT INTO agent_runs (run_id, agent, status, error, duration_ms)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)`,
		a.RunID, a.Agent, a.Status, a.Error, a.DurationMS)
	if err != nil {
		return fmt.Errorf("save agent run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// ListAgentRuns returns the agent records of a run in completion order.
func (s *Store) ListAgentRuns(runID string) ([]AgentRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, agent, status, error, duration_ms, created_at
		FROM agent_runs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list agent runs: %w", err)
	}
	defer rows.Close()

	var out []AgentRun
	for rows.Next() {
		var a AgentRun
		var errMsg *string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Agent, &a.Status, &errMsg, &a.DurationMS, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent run: %w", err)
		}
		if errMsg != nil {
			a.Error = *errMsg
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
