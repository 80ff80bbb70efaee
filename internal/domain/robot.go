package domain

import "time"

// Robot is an autonomous agent registered with a stake.
// Stake is in minor units; Active is derived from the current minimum stake.
type Robot struct {
	ID           string    `json:"id"`
	IDHash       string    `json:"id_hash"`
	Owner        string    `json:"owner"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Capabilities []string  `json:"capabilities"`
	MetadataURI  string    `json:"metadata_uri"`
	Stake        int64     `json:"stake"`
	Reputation   int64     `json:"reputation"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Evaluate recomputes Active against minStake.
func (r *Robot) Evaluate(minStake int64) {
	r.Active = r.Stake >= minStake
}
