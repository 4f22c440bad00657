package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gorilla/mux"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/logger"
)

// CronSecretHeader carries the shared secret of the external trigger.
const CronSecretHeader = "X-Cron-Secret"

// ReminderRunner runs one reminder dispatch.
type ReminderRunner interface {
	Run(ctx context.Context, scope domain.Scope) (*domain.RunResult, error)
}

// ReminderHandler exposes the reminder dispatch to an external scheduler
type ReminderHandler struct {
	runner ReminderRunner
	secret string
}

// NewReminderHandler creates a new trigger handler. An empty secret rejects every call.
func NewReminderHandler(runner ReminderRunner, secret string) *ReminderHandler {
	return &ReminderHandler{
		runner: runner,
		secret: secret,
	}
}

type runResponse struct {
	OK bool `json:"ok"`
	*domain.RunResult
	Error string `json:"error,omitempty"`
}

// HandleRun handles POST /cron/reminders/run
func (h *ReminderHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		logger.Warn("Rejected reminder trigger", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, runResponse{Error: "unauthorized"})
		return
	}

	scope, err := domain.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, runResponse{Error: err.Error()})
		return
	}

	// A client hanging up must not abort the item being sent.
	ctx := context.WithoutCancel(r.Context())

	logger.Info("Reminder run triggered", "scope", scope, "remote_addr", r.RemoteAddr)
	result, err := h.runner.Run(ctx, scope)
	if err != nil {
		logger.Error("Reminder run failed", "scope", scope, "error", err)
		writeJSON(w, http.StatusInternalServerError, runResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, runResponse{OK: true, RunResult: result})
}

// HandleHealth handles GET /healthz
func (h *ReminderHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, runResponse{OK: true})
}

func (h *ReminderHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	got := r.Header.Get(CronSecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}

// NewTriggerLimiter limits trigger calls per client IP. It returns nil, meaning no
// limit, when rps is zero.
func NewTriggerLimiter(rps float64, burst int) *limiter.Limiter {
	if rps <= 0 {
		return nil
	}
	lmt := tollbooth.NewLimiter(rps, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	lmt.SetBurst(burst)
	return lmt
}

func rateLimited(lmt *limiter.Limiter, next http.HandlerFunc) http.HandlerFunc {
	if lmt == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if httpError := tollbooth.LimitByRequest(lmt, w, r); httpError != nil {
			logger.Warn("Reminder trigger rate limited", "remote_addr", r.RemoteAddr)
			writeJSON(w, httpError.StatusCode, runResponse{Error: httpError.Message})
			return
		}
		next(w, r)
	}
}

// RegisterReminderRoutes registers the trigger and health endpoints. lmt may be nil.
func RegisterReminderRoutes(router *mux.Router, handler *ReminderHandler, lmt *limiter.Limiter) {
	router.HandleFunc("/cron/reminders/run", rateLimited(lmt, handler.HandleRun)).Methods("POST")
	router.HandleFunc("/healthz", handler.HandleHealth).Methods("GET")
}
