package domain

import "time"

// TxType classifies a journal movement.
type TxType string

const (
	TxStake  TxType = "STAKE"  // owner locks stake on a robot
	TxTrade  TxType = "TRADE"  // user buys shares into a task pool
	TxPayout TxType = "PAYOUT" // winning position redeemed from escrow

	TxUnstake TxType = "UNSTAKE" // stake released when a robot is deleted
)

// EntryType is one leg of a double-entry pair.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// LedgerEntry is one leg of a journal movement. Balance is the account's
// running balance after this entry.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        TxType    `json:"type"`
	EntryType   EntryType `json:"entry_type"`
	Account     string    `json:"account"`
	Amount      int64     `json:"amount"`
	Ref         string    `json:"ref,omitempty"`
	Description string    `json:"description,omitempty"`
	Balance     int64     `json:"balance"`
}

// Journal account names.
func UserAccount(user string) string { return "user:" + user }
func StakeAccount(robotID string) string { return "stake:" + robotID }
func EscrowAccount(taskID string) string { return "escrow:" + taskID }
