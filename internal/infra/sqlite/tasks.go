package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/qor-network/qor/internal/domain"
)

// ─── Task Repository ────────────────────────────────────────────────────────

const taskColumns = `id, robot_id, title, description, waypoints, deadline, required_score,
	yes_pool, no_pool, status, solution_uri, optimization_score, evidence_uri, success,
	created_at, resolved_at`

// PutTask inserts or updates a task record.
func (t *tx) PutTask(task *domain.Task) error {
	wps, err := json.Marshal(task.Waypoints)
	if err != nil {
		return err
	}
	var score sql.NullInt64
	if task.OptimizationScore != nil {
		score = sql.NullInt64{Int64: int64(*task.OptimizationScore), Valid: true}
	}
	var success sql.NullBool
	if task.Success != nil {
		success = sql.NullBool{Bool: *task.Success, Valid: true}
	}

	_, err = t.tx.Exec(
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			deadline=excluded.deadline,
			yes_pool=excluded.yes_pool,
			no_pool=excluded.no_pool,
			status=excluded.status,
			solution_uri=excluded.solution_uri,
			optimization_score=excluded.optimization_score,
			evidence_uri=excluded.evidence_uri,
			success=excluded.success,
			resolved_at=excluded.resolved_at`,
		task.ID, task.RobotID, task.Title, task.Description, string(wps),
		unixNano(task.Deadline), task.RequiredScore, task.YesPool, task.NoPool,
		string(task.Status), nullStr(task.SolutionURI), score, nullStr(task.EvidenceURI),
		success, unixNano(task.CreatedAt), nullableNano(task.ResolvedAt),
	)
	return err
}

// GetTask retrieves a task by id.
func (t *tx) GetTask(id string) (*domain.Task, error) {
	row := t.tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return task, err
}

// ListTasks returns tasks matching filter, newest first.
func (t *tx) ListTasks(filter domain.TaskFilter) ([]domain.Task, error) {
	where, args := taskWhere(filter)
	rows, err := t.tx.Query(
		`SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CountTasks counts tasks matching filter.
func (t *tx) CountTasks(filter domain.TaskFilter) (int, error) {
	where, args := taskWhere(filter)
	var n int
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM tasks`+where, args...).Scan(&n)
	return n, err
}

// DeleteTask removes a task record.
func (t *tx) DeleteTask(id string) error {
	res, err := t.tx.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res, domain.ErrTaskNotFound)
}

func taskWhere(f domain.TaskFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.RobotID != "" {
		clauses = append(clauses, "robot_id = ?")
		args = append(args, f.RobotID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanTask(s scanner) (*domain.Task, error) {
	var task domain.Task
	var wps, status string
	var deadline, createdAt int64
	var solution, evidence sql.NullString
	var score, resolvedAt sql.NullInt64
	var success sql.NullBool

	err := s.Scan(&task.ID, &task.RobotID, &task.Title, &task.Description, &wps,
		&deadline, &task.RequiredScore, &task.YesPool, &task.NoPool, &status,
		&solution, &score, &evidence, &success, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(wps), &task.Waypoints); err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Deadline = fromNano(deadline)
	task.CreatedAt = fromNano(createdAt)
	task.SolutionURI = solution.String
	task.EvidenceURI = evidence.String
	if score.Valid {
		v := int(score.Int64)
		task.OptimizationScore = &v
	}
	if success.Valid {
		v := success.Bool
		task.Success = &v
	}
	if resolvedAt.Valid {
		task.ResolvedAt = fromNano(resolvedAt.Int64)
	}
	return &task, nil
}

// ─── Position Repository ────────────────────────────────────────────────────

// InsertPosition records a new position.
func (t *tx) InsertPosition(p *domain.Position) error {
	_, err := t.tx.Exec(
		`INSERT INTO positions (id, task_id, user, side, shares, cost, redeemed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TaskID, p.User, string(p.Side), p.Shares, p.Cost, p.Redeemed, unixNano(p.CreatedAt),
	)
	return err
}

// ListPositions returns a task's positions in creation order.
func (t *tx) ListPositions(taskID string) ([]domain.Position, error) {
	rows, err := t.tx.Query(
		`SELECT id, task_id, user, side, shares, cost, redeemed, created_at
		 FROM positions WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var side string
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.TaskID, &p.User, &side, &p.Shares, &p.Cost,
			&p.Redeemed, &createdAt); err != nil {
			return nil, err
		}
		p.Side = domain.Side(side)
		p.CreatedAt = fromNano(createdAt)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CountPositions counts a task's positions.
func (t *tx) CountPositions(taskID string) (int, error) {
	var n int
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM positions WHERE task_id = ?`, taskID).Scan(&n)
	return n, err
}

// MarkRedeemed flags positions as redeemed.
func (t *tx) MarkRedeemed(ids []string) error {
	for _, id := range ids {
		if _, err := t.tx.Exec(`UPDATE positions SET redeemed = 1 WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}
