// Package oracle is the only gate that resolves markets. It compares the
// optimizer's score against the task's threshold and commits the outcome.
package oracle

import (
	"context"
	"fmt"

	"github.com/qor-network/qor/internal/app/market"
	"github.com/qor-network/qor/internal/domain"
)

// Market is the resolution surface the oracle drives.
type Market interface {
	Resolve(ctx context.Context, key, taskID, evidenceURI string, judge market.Judge) (*domain.Task, error)
}

// Verdict reports a committed resolution.
type Verdict struct {
	TaskID        string `json:"task_id"`
	Success       bool   `json:"success"`
	Score         int    `json:"score"`
	RequiredScore int    `json:"required_score"`
	EvidenceURI   string `json:"evidence_uri"`
	Message       string `json:"message"`
}

// Resolver holds no state of its own.
type Resolver struct {
	market  Market
	callers []string
}

// New creates a resolver. callers restricts who may verify; empty allows any.
func New(m Market, callers []string) *Resolver {
	return &Resolver{market: m, callers: callers}
}

// Verify resolves taskID: success iff optimizationScore >= requiredScore.
// The comparison runs under the market's task lock, so concurrent calls
// resolve at most once.
func (r *Resolver) Verify(ctx context.Context, key, caller, taskID, evidenceURI string) (*Verdict, error) {
	if !domain.Allowed(r.callers, caller) {
		return nil, domain.ErrNotOracle
	}

	judge := func(t *domain.Task) (bool, error) {
		if t.Status != domain.TaskOpen {
			return false, domain.ErrAlreadyResolved
		}
		if !t.Optimized() || t.OptimizationScore == nil {
			return false, domain.ErrTaskNotOptimized
		}
		return *t.OptimizationScore >= t.RequiredScore, nil
	}

	t, err := r.market.Resolve(ctx, key, taskID, evidenceURI, judge)
	if err != nil {
		return nil, err
	}

	v := &Verdict{
		TaskID:        t.ID,
		Success:       *t.Success,
		Score:         *t.OptimizationScore,
		RequiredScore: t.RequiredScore,
		EvidenceURI:   t.EvidenceURI,
	}
	if v.Success {
		v.Message = fmt.Sprintf("verified: score %d meets required %d", v.Score, v.RequiredScore)
	} else {
		v.Message = fmt.Sprintf("rejected: score %d below required %d", v.Score, v.RequiredScore)
	}
	return v, nil
}
