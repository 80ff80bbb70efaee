// Package api provides the HTTP server for the QOR ledgers.
// Every mutating route maps onto exactly one ledger operation.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/qor-network/qor/internal/app"
	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/health"
	"github.com/qor-network/qor/internal/infra/units"
)

const (
	// HeaderCaller carries the identity asserted by the provider in front of the core.
	HeaderCaller = "X-Caller-Identity"
	// HeaderIdempotencyKey makes a mutating request safe to retry.
	HeaderIdempotencyKey = "Idempotency-Key"

	maxBodyBytes = 1 << 20
)

// Server is the QOR HTTP API server.
type Server struct {
	core           *app.Core
	log            zerolog.Logger
	version        string
	decimals       int32
	corsOrigins    []string
	timeout        time.Duration
	metricsEnabled bool
	health         *health.Checker
}

// NewServer creates a new API server over core.
func NewServer(core *app.Core, log zerolog.Logger) *Server {
	return &Server{
		core:     core,
		log:      log.With().Str("component", "api").Logger(),
		version:  "dev",
		decimals: units.DefaultDecimals,
		timeout:  30 * time.Second,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth reports checker results on /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetVersion sets the version reported by /api/status.
func (s *Server) SetVersion(v string) { s.version = v }

// SetDecimals sets the fractional digits used for *_display fields.
func (s *Server) SetDecimals(d int32) { s.decimals = d }

// SetCORSOrigins restricts allowed origins. Empty allows any.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// SetRequestTimeout bounds each request.
func (s *Server) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(requestMetrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware(s.corsOrigins))

	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)

	r.Route("/api/robots", func(r chi.Router) {
		r.Get("/", s.handleListRobots)
		r.Post("/", s.handleRegisterRobot)
		r.Get("/{id}", s.handleGetRobot)
		r.Patch("/{id}", s.handleUpdateRobot)
		r.Delete("/{id}", s.handleDeleteRobot)
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Post("/", s.handleCreateTask)
		r.Get("/{id}", s.handleGetTask)
		r.Delete("/{id}", s.handleDeleteTask)
		r.Get("/{id}/positions", s.handleTaskPositions)
		r.Post("/{id}/buy", s.handleBuy)
		r.Post("/{id}/solution", s.handleSetSolution)
		r.Post("/{id}/redeem", s.handleRedeem)
		r.Patch("/{id}/deadline", s.handleUpdateDeadline)
	})

	r.Post("/api/oracle/verify", s.handleVerify)

	r.Route("/api/dao", func(r chi.Router) {
		r.Get("/stats", s.handleGovernanceStats)
		r.Get("/proposals", s.handleListProposals)
		r.Post("/proposals", s.handlePropose)
		r.Get("/proposals/{id}", s.handleGetProposal)
		r.Delete("/proposals/{id}", s.handleDeleteProposal)
		r.Post("/proposals/{id}/votes", s.handleVote)
		r.Post("/proposals/{id}/execute", s.handleExecute)
		r.Post("/proposals/{id}/withdraw", s.handleWithdraw)
	})

	r.Get("/api/ledger/{account}", s.handleLedger)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path, domain.KindNotFound.String(), "NOT_FOUND")
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	minStake := s.core.Registry.MinStake()
	writeJSON(w, http.StatusOK, struct {
		Status          string `json:"status"`
		Version         string `json:"version"`
		MinStake        int64  `json:"min_stake"`
		MinStakeDisplay string `json:"min_stake_display"`
		Quorum          int64  `json:"quorum"`
		VoteWeighting   string `json:"vote_weighting"`
	}{
		Status:          "QOR ledger is running",
		Version:         s.version,
		MinStake:        minStake,
		MinStakeDisplay: s.display(minStake),
		Quorum:          s.core.Policy.Quorum,
		VoteWeighting:   string(s.core.Policy.VoteWeighting),
	})
}

// ─── Request helpers ────────────────────────────────────────────────────────

// caller returns the asserted identity, writing a 401 when it is absent.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderCaller))
	if id == "" {
		writeError(w, http.StatusUnauthorized, HeaderCaller+" header is required", domain.KindAuthorization.String(), "MISSING_IDENTITY")
		return "", false
	}
	return id, true
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
}

// decodeJSON reads a strict JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), domain.KindValidation.String(), domain.ErrInvalidInput.Code)
		return false
	}
	return true
}

// parseTime accepts RFC 3339 strings and unix seconds.
func parseTime(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, domain.Invalid(domain.ErrInvalidDeadline, "deadline %q is not RFC 3339", s)
		}
		return t, nil
	}
	var secs int64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, domain.Invalid(domain.ErrInvalidDeadline, "deadline must be RFC 3339 or unix seconds")
	}
	return time.Unix(secs, 0).UTC(), nil
}

func (s *Server) display(minor int64) string { return units.Format(minor, s.decimals) }

// ─── Response helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg, typ, code string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    typ,
			"code":    code,
		},
	})
}

// writeLedgerError maps a ledger failure onto its HTTP status.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if kind == domain.KindInternal {
		s.log.Error().Err(err).Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).Msg("ledger failure")
		msg = "internal error"
	}
	writeError(w, status, msg, kind.String(), domain.CodeOf(err))
}

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// queryLimit reads ?limit=, falling back to def.
func queryLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.Invalid(domain.ErrInvalidInput, "limit %q must be a positive integer", raw)
	}
	return n, nil
}
