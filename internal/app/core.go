// Package app wires the four ledgers together. Core is built once at
// process start and handed to every consumer by reference; no ledger looks
// another up through a global.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/qor-network/qor/internal/app/credit"
	"github.com/qor-network/qor/internal/app/governance"
	"github.com/qor-network/qor/internal/app/market"
	"github.com/qor-network/qor/internal/app/oracle"
	"github.com/qor-network/qor/internal/app/registry"
	"github.com/qor-network/qor/internal/app/txn"
	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/keylock"
)

// Core holds the wired ledgers.
type Core struct {
	Registry   *registry.Ledger
	Market     *market.Ledger
	Oracle     *oracle.Resolver
	Governance *governance.Ledger
	Journal    *credit.Journal
	Runner     *txn.Runner
	Policy     domain.Policy
}

// NewCore wires the ledgers over store. Governance applies executed
// registry actions through the registry.
func NewCore(store domain.Store, policy domain.Policy, log zerolog.Logger) *Core {
	runner := txn.NewRunner(store, keylock.New())
	journal := credit.NewJournal()

	reg := registry.New(runner, journal, policy.MinStake, log)
	mkt := market.New(runner, journal, reg, policy, log)

	return &Core{
		Registry:   reg,
		Market:     mkt,
		Oracle:     oracle.New(mkt, policy.OracleCallers),
		Governance: governance.New(runner, policy, reg, log),
		Journal:    journal,
		Runner:     runner,
		Policy:     policy,
	}
}

// Account returns a journal account's balance and its most recent entries.
func (c *Core) Account(ctx context.Context, account string, limit int) (int64, []domain.LedgerEntry, error) {
	var (
		balance int64
		entries []domain.LedgerEntry
	)
	err := c.Runner.View(ctx, func(tx domain.Tx) error {
		var err error
		if balance, err = c.Journal.Balance(tx, account); err != nil {
			return err
		}
		entries, err = c.Journal.History(tx, account, limit)
		return err
	})
	return balance, entries, err
}
