package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/qor-network/qor/internal/domain"
)

// ─── Robot Repository ───────────────────────────────────────────────────────

const robotColumns = `id, id_hash, owner, name, description, capabilities, metadata_uri,
	stake, reputation, registered_at, updated_at`

// PutRobot inserts or updates a robot record.
func (t *tx) PutRobot(r *domain.Robot) error {
	caps, err := json.Marshal(r.Capabilities)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(
		`INSERT INTO robots (`+robotColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			description=excluded.description,
			capabilities=excluded.capabilities,
			metadata_uri=excluded.metadata_uri,
			stake=excluded.stake,
			reputation=excluded.reputation,
			updated_at=excluded.updated_at`,
		r.ID, r.IDHash, r.Owner, r.Name, r.Description, string(caps), r.MetadataURI,
		r.Stake, r.Reputation, unixNano(r.RegisteredAt), unixNano(r.UpdatedAt),
	)
	return err
}

// GetRobot retrieves a single robot by id.
func (t *tx) GetRobot(id string) (*domain.Robot, error) {
	row := t.tx.QueryRow(`SELECT `+robotColumns+` FROM robots WHERE id = ?`, id)
	r, err := scanRobot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRobotNotFound
	}
	return r, err
}

// RobotExists reports whether id is taken.
func (t *tx) RobotExists(id string) (bool, error) {
	var n int
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM robots WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// ListRobots returns all robots, oldest registration first.
func (t *tx) ListRobots() ([]domain.Robot, error) {
	return t.queryRobots(`SELECT `+robotColumns+` FROM robots ORDER BY registered_at`)
}

// RobotsByOwnerName returns the owner's robots carrying name.
func (t *tx) RobotsByOwnerName(owner, name string) ([]domain.Robot, error) {
	return t.queryRobots(
		`SELECT `+robotColumns+` FROM robots WHERE owner = ? AND name = ?`, owner, name)
}

// DeleteRobot removes a robot record.
func (t *tx) DeleteRobot(id string) error {
	res, err := t.tx.Exec(`DELETE FROM robots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res, domain.ErrRobotNotFound)
}

func (t *tx) queryRobots(query string, args ...any) ([]domain.Robot, error) {
	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var robots []domain.Robot
	for rows.Next() {
		r, err := scanRobot(rows)
		if err != nil {
			return nil, err
		}
		robots = append(robots, *r)
	}
	return robots, rows.Err()
}

func scanRobot(s scanner) (*domain.Robot, error) {
	var r domain.Robot
	var caps string
	var registeredAt, updatedAt int64

	err := s.Scan(&r.ID, &r.IDHash, &r.Owner, &r.Name, &r.Description, &caps,
		&r.MetadataURI, &r.Stake, &r.Reputation, &registeredAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(caps), &r.Capabilities); err != nil {
		return nil, err
	}
	r.RegisteredAt = fromNano(registeredAt)
	r.UpdatedAt = fromNano(updatedAt)
	return &r, nil
}
