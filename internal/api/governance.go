package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qor-network/qor/internal/app/governance"
	"github.com/qor-network/qor/internal/domain"
)

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	oracle, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		TaskID      string `json:"task_id"`
		EvidenceURI string `json:"evidence_uri"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	verdict, err := s.core.Oracle.Verify(r.Context(), idempotencyKey(r), oracle, req.TaskID, req.EvidenceURI)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleGovernanceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.core.Governance.Stats(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	ps, err := s.core.Governance.List(r.Context(), domain.ProposalStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if ps == nil {
		ps = []domain.Proposal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": ps})
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.core.Governance.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	proposer, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Action      string `json:"action"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := s.core.Governance.Propose(r.Context(), idempotencyKey(r), governance.NewProposal{
		Title:       req.Title,
		Description: req.Description,
		Action:      req.Action,
		Proposer:    proposer,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	voter, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Support *bool `json:"support"`
		Weight  int64 `json:"weight"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Support == nil {
		s.writeLedgerError(w, r, domain.Invalid(domain.ErrInvalidInput, "support is required"))
		return
	}
	if req.Weight == 0 {
		req.Weight = 1
	}

	p, err := s.core.Governance.Vote(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), voter, *req.Support, req.Weight)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	p, err := s.core.Governance.Execute(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	proposer, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := s.core.Governance.Withdraw(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), proposer)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProposal(w http.ResponseWriter, r *http.Request) {
	proposer, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := s.core.Governance.Delete(r.Context(), idempotencyKey(r), chi.URLParam(r, "id"), proposer)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": p.ID})
}
