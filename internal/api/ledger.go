package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qor-network/qor/internal/domain"
)

type entryView struct {
	domain.LedgerEntry
	AmountDisplay  string `json:"amount_display"`
	BalanceDisplay string `json:"balance_display"`
}

// handleLedger returns a journal account's balance and recent entries.
// Accounts are named user:<id>, stake:<robot> or escrow:<task>.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 50)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	account := chi.URLParam(r, "account")
	balance, entries, err := s.core.Account(r.Context(), account, limit)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryView{
			LedgerEntry:    e,
			AmountDisplay:  s.display(e.Amount),
			BalanceDisplay: s.display(e.Balance),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":         account,
		"balance":         balance,
		"balance_display": s.display(balance),
		"entries":         out,
	})
}
