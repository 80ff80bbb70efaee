// Package domain — market types.
// A Task is a binary prediction market on whether a robot completes a
// mission: create → trade → optimize → verify → redeem.
package domain

import (
	"strings"
	"time"
)

// TaskStatus tracks task lifecycle.
type TaskStatus string

const (
	TaskOpen     TaskStatus = "OPEN"
	TaskResolved TaskStatus = "RESOLVED"
)

// Side is the outcome a position backs.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// ParseSide accepts yes/no in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return SideYes, nil
	case "NO":
		return SideNo, nil
	}
	return "", Invalid(ErrInvalidSide, "got %q", s)
}

// MaxScore bounds requiredScore and optimizationScore.
const MaxScore = 100

// Task is a mission turned into a pari-mutuel YES/NO market.
type Task struct {
	ID                string     `json:"id"`
	RobotID           string     `json:"robot_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Waypoints         []Waypoint `json:"waypoints"`
	Deadline          time.Time  `json:"deadline"`
	RequiredScore     int        `json:"required_score"`
	YesPool           int64      `json:"yes_pool"`
	NoPool            int64      `json:"no_pool"`
	Status            TaskStatus `json:"status"`
	SolutionURI       string     `json:"solution_uri,omitempty"`
	OptimizationScore *int       `json:"optimization_score,omitempty"`
	EvidenceURI       string     `json:"evidence_uri,omitempty"`
	Success           *bool      `json:"success,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        time.Time  `json:"resolved_at,omitempty"`
}

// TotalPool is the combined stake on both sides.
func (t *Task) TotalPool() int64 { return t.YesPool + t.NoPool }

// Optimized reports whether the optimizer hand-off has been recorded.
func (t *Task) Optimized() bool { return t.SolutionURI != "" }

// WinningSide returns the side that can redeem. Only meaningful once resolved.
func (t *Task) WinningSide() Side {
	if t.Success != nil && *t.Success {
		return SideYes
	}
	return SideNo
}

// Pool returns the pool for side.
func (t *Task) Pool(side Side) int64 {
	if side == SideYes {
		return t.YesPool
	}
	return t.NoPool
}

// Position is a user's stake on one side of a task. Immutable except Redeemed.
type Position struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	User      string    `json:"user"`
	Side      Side      `json:"side"`
	Shares    int64     `json:"shares"`
	Cost      int64     `json:"cost"`
	Redeemed  bool      `json:"redeemed"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskFilter narrows task listings. Zero value lists everything.
type TaskFilter struct {
	Status  TaskStatus
	RobotID string
}
