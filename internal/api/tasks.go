package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qor-network/qor/internal/app/market"
	"github.com/qor-network/qor/internal/domain"
)

// taskView adds presentation fields to a task.
type taskView struct {
	domain.Task
	YesPoolDisplay   string `json:"yes_pool_display"`
	NoPoolDisplay    string `json:"no_pool_display"`
	TotalPool        int64  `json:"total_pool"`
	TotalPoolDisplay string `json:"total_pool_display"`
}

func (s *Server) taskView(t *domain.Task) taskView {
	return taskView{
		Task:             *t,
		YesPoolDisplay:   s.display(t.YesPool),
		NoPoolDisplay:    s.display(t.NoPool),
		TotalPool:        t.TotalPool(),
		TotalPoolDisplay: s.display(t.TotalPool()),
	}
}

type positionView struct {
	domain.Position
	SharesDisplay string `json:"shares_display"`
	CostDisplay   string `json:"cost_display"`
}

func (s *Server) positionView(p *domain.Position) positionView {
	return positionView{Position: *p, SharesDisplay: s.display(p.Shares), CostDisplay: s.display(p.Cost)}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := domain.TaskFilter{
		Status:  domain.TaskStatus(r.URL.Query().Get("status")),
		RobotID: r.URL.Query().Get("robot_id"),
	}
	tasks, err := s.core.Market.List(r.Context(), filter)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	out := make([]taskView, 0, len(tasks))
	for i := range tasks {
		out = append(out, s.taskView(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.core.Market.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.taskView(t))
}

func (s *Server) handleTaskPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.core.Market.Positions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	out := make([]positionView, 0, len(positions))
	for i := range positions {
		out = append(out, s.positionView(&positions[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": out})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	var req struct {
		RobotID       string            `json:"robot_id"`
		Title         string            `json:"title"`
		Description   string            `json:"description"`
		Waypoints     []json.RawMessage `json:"waypoints"`
		Deadline      json.RawMessage   `json:"deadline"`
		RequiredScore int               `json:"required_score"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	waypoints, err := domain.ParseWaypoints(req.Waypoints)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	deadline, err := parseTime(req.Deadline)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	t, err := s.core.Market.CreateTask(r.Context(), idempotencyKey(r), market.NewTask{
		RobotID:       req.RobotID,
		Title:         req.Title,
		Description:   req.Description,
		Waypoints:     waypoints,
		Deadline:      deadline,
		RequiredScore: req.RequiredScore,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.taskView(t))
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Side   string `json:"side"`
		Amount int64  `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	trade, err := s.core.Market.Buy(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), user, side, req.Amount)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"position": s.positionView(&trade.Position),
		"task":     s.taskView(&trade.Task),
	})
}

func (s *Server) handleSetSolution(w http.ResponseWriter, r *http.Request) {
	optimizer, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		SolutionURI       string `json:"solution_uri"`
		OptimizationScore int    `json:"optimization_score"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.core.Market.SetSolution(r.Context(), idempotencyKey(r), optimizer, chi.URLParam(r, "id"), req.SolutionURI, req.OptimizationScore)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.taskView(t))
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	red, err := s.core.Market.Redeem(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), user)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*market.Redemption
		PayoutDisplay string `json:"payout_display"`
	}{red, s.display(red.Payout)})
}

func (s *Server) handleUpdateDeadline(w http.ResponseWriter, r *http.Request) {
	owner, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Deadline json.RawMessage `json:"deadline"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	deadline, err := parseTime(req.Deadline)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	t, err := s.core.Market.UpdateDeadline(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), owner, deadline)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.taskView(t))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := caller(w, r)
	if !ok {
		return
	}
	t, err := s.core.Market.Delete(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), owner)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": t.ID})
}
