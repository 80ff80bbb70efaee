// Package txn runs mutating ledger operations as atomic read-modify-write
// units: lock the affected roots, open a store transaction, honour the
// caller's idempotency key, apply, commit.
package txn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/keylock"
	"github.com/qor-network/qor/internal/infra/metrics"
	"github.com/qor-network/qor/internal/infra/tracing"
)

// Runner serializes writers per aggregate root over a Store.
type Runner struct {
	store domain.Store
	locks *keylock.Locker

	// now is injectable for testing.
	now func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(store domain.Store, locks *keylock.Locker) *Runner {
	return &Runner{store: store, locks: locks, now: time.Now}
}

// Op describes one mutating call.
type Op struct {
	Name    string   // operation name, used for metrics, spans and key scoping
	Key     string   // caller-supplied idempotency key; empty disables replay
	Payload any      // inputs compared when Key is reused
	Locks   []string // aggregate-root lock keys
}

// Lock keys for aggregate roots.
func RobotKey(id string) string    { return "robot:" + id }
func TaskKey(id string) string     { return "task:" + id }
func ProposalKey(id string) string { return "proposal:" + id }

// View runs a read-only transaction.
func (r *Runner) View(ctx context.Context, fn func(tx domain.Tx) error) error {
	return r.store.View(ctx, fn)
}

// Do executes fn for op. A reused key with the same operation and payload
// returns the stored snapshot without re-applying; a reused key with a
// different request fails ErrIdempotencyMismatch.
func Do[T any](ctx context.Context, r *Runner, op Op, fn func(tx domain.Tx) (T, error)) (T, error) {
	start := r.now()
	ctx, span := tracing.Tracer().Start(ctx, "ledger."+op.Name)
	span.SetAttributes(
		attribute.String("ledger.op", op.Name),
		attribute.Bool("ledger.idempotent", op.Key != ""),
	)
	defer span.End()

	locks := op.Locks
	if op.Key != "" {
		locks = append([]string{"idem:" + op.Key}, locks...)
	}
	unlock := r.locks.Lock(locks...)
	defer unlock()

	var (
		out      T
		replayed bool
	)
	err := r.store.Update(ctx, func(tx domain.Tx) error {
		var fp string
		if op.Key != "" {
			var err error
			if fp, err = fingerprint(op); err != nil {
				return err
			}
			rec, err := tx.GetIdempotency(op.Key)
			if err != nil {
				return fmt.Errorf("load idempotency key: %w", err)
			}
			if rec != nil {
				if rec.Operation != op.Name || rec.Fingerprint != fp {
					return domain.ErrIdempotencyMismatch
				}
				replayed = true
				return json.Unmarshal(rec.Response, &out)
			}
		}

		res, err := fn(tx)
		if err != nil {
			return err
		}
		out = res

		if op.Key != "" {
			body, err := json.Marshal(res)
			if err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}
			return tx.PutIdempotency(domain.IdempotencyRecord{
				Key:         op.Key,
				Operation:   op.Name,
				Fingerprint: fp,
				Response:    body,
				CreatedAt:   r.now(),
			})
		}
		return nil
	})

	metrics.LedgerOpLatency.WithLabelValues(op.Name).Observe(r.now().Sub(start).Seconds())
	switch {
	case err != nil:
		metrics.LedgerOps.WithLabelValues(op.Name, domain.KindOf(err).String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.CodeOf(err))
		var zero T
		return zero, err
	case replayed:
		metrics.LedgerOps.WithLabelValues(op.Name, "replayed").Inc()
		span.SetAttributes(attribute.Bool("ledger.replayed", true))
	default:
		metrics.LedgerOps.WithLabelValues(op.Name, "ok").Inc()
	}
	return out, nil
}

func fingerprint(op Op) (string, error) {
	body, err := json.Marshal(op.Payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	sum := sha256.Sum256(append([]byte(op.Name+"\x00"), body...))
	return hex.EncodeToString(sum[:]), nil
}
