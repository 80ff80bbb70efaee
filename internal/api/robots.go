package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qor-network/qor/internal/app/registry"
	"github.com/qor-network/qor/internal/domain"
)

// robotView adds presentation fields to a robot.
type robotView struct {
	domain.Robot
	StakeDisplay string `json:"stake_display"`
}

func (s *Server) robotView(r *domain.Robot) robotView {
	return robotView{Robot: *r, StakeDisplay: s.display(r.Stake)}
}

func (s *Server) handleListRobots(w http.ResponseWriter, r *http.Request) {
	robots, err := s.core.Registry.List(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	out := make([]robotView, 0, len(robots))
	for i := range robots {
		out = append(out, s.robotView(&robots[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"robots": out})
}

func (s *Server) handleGetRobot(w http.ResponseWriter, r *http.Request) {
	robot, err := s.core.Registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.robotView(robot))
}

func (s *Server) handleRegisterRobot(w http.ResponseWriter, r *http.Request) {
	owner, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Capabilities []string `json:"capabilities"`
		Stake        int64    `json:"stake"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	robot, err := s.core.Registry.Register(r.Context(), idempotencyKey(r), registry.Registration{
		Name:         req.Name,
		Owner:        owner,
		Description:  req.Description,
		Capabilities: req.Capabilities,
		Stake:        req.Stake,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.robotView(robot))
}

func (s *Server) handleUpdateRobot(w http.ResponseWriter, r *http.Request) {
	owner, ok := caller(w, r)
	if !ok {
		return
	}
	var upd registry.RobotUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	robot, err := s.core.Registry.Update(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), owner, upd)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.robotView(robot))
}

func (s *Server) handleDeleteRobot(w http.ResponseWriter, r *http.Request) {
	owner, ok := caller(w, r)
	if !ok {
		return
	}
	robot, err := s.core.Registry.Delete(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), owner)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":          robot.ID,
		"released":         robot.Stake,
		"released_display": s.display(robot.Stake),
	})
}
