package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/exemple-users/internal/metrics"
	"github.com/eugenenazirov/exemple-users/internal/store"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	maxBodyBytes            = 1 << 20
	defaultOperationTimeout = 5 * time.Second
)

// Handler serves the user resource through the model registry it was built with.
// It holds no per-request state.
type Handler struct {
	models    store.Models
	logger    *zap.Logger
	opTimeout time.Duration
	state     func() store.State
	clock     func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithOperationTimeout bounds every user model call. Non-positive values keep the default.
func WithOperationTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.opTimeout = d
		}
	}
}

// WithStoreState lets the health endpoint report the store connection state.
func WithStoreState(fn func() store.State) HandlerOption {
	return func(h *Handler) {
		h.state = fn
	}
}

// NewHandler constructs a Handler on top of the provided model registry.
func NewHandler(models store.Models, logger *zap.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		models:    models,
		logger:    logger,
		opTimeout: defaultOperationTimeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Store:     store.StateConnected.String(),
		Timestamp: h.clock(),
	}
	status := http.StatusOK
	if h.state != nil {
		if state := h.state(); state != store.StateConnected {
			resp.Status = "degraded"
			resp.Store = state.String()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var users []store.User
	err := h.call(r.Context(), "list", func(ctx context.Context) error {
		var err error
		users, err = h.models.ExempleUser.List(ctx)
		return err
	})
	if err != nil {
		h.writeStoreError(w, r, err, nil)
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUsers(w http.ResponseWriter, r *http.Request) {
	var req createUsersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Users) == 0 {
		writeValidationError(w, []fieldError{{Field: "users", Reason: "must contain at least one user"}})
		return
	}

	var created []store.User
	err := h.call(r.Context(), "create", func(ctx context.Context) error {
		var err error
		created, err = h.models.ExempleUser.CreateMany(ctx, req.Users)
		return err
	})
	if err != nil {
		h.writeStoreError(w, r, err, func(p store.Problem) string {
			return fmt.Sprintf("users[%d].%s", p.Index, p.Field)
		})
		return
	}

	h.logger.Debug("users created", zap.Int("count", len(created)), zap.String("request_id", requestIDFromContext(r.Context())))
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.User == nil {
		writeValidationError(w, []fieldError{{Field: "user", Reason: "is required"}})
		return
	}

	var updated store.User
	err := h.call(r.Context(), "update", func(ctx context.Context) error {
		var err error
		updated, err = h.models.ExempleUser.Update(ctx, id, *req.User)
		return err
	})
	if err != nil {
		h.writeStoreError(w, r, err, func(p store.Problem) string {
			return "user." + p.Field
		})
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.call(r.Context(), "delete", func(ctx context.Context) error {
		return h.models.ExempleUser.Delete(ctx, id)
	})
	if err != nil {
		h.writeStoreError(w, r, err, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// call runs a single user model operation under the configured deadline and records its outcome.
func (h *Handler) call(parent context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, h.opTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStoreOperation(operation, outcome(err), time.Since(start))
	return err
}

// writeStoreError translates a model error into a response. fieldName maps a
// validation problem onto the request body path reported to the caller.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error, fieldName func(store.Problem) string) {
	requestID := requestIDFromContext(r.Context())

	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]fieldError, 0, len(verr.Problems))
		for _, p := range verr.Problems {
			name := p.Field
			if fieldName != nil {
				name = fieldName(p)
			}
			fields = append(fields, fieldError{Field: name, Reason: p.Reason})
		}
		writeValidationError(w, fields)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", fmt.Sprintf("user %q does not exist", r.PathValue("id")))
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("store operation timed out",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("timeout", h.opTimeout),
			zap.String("request_id", requestID),
		)
		writeError(w, http.StatusGatewayTimeout, "Store timeout", "the store did not answer in time")
	default:
		h.logger.Error("store operation failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		writeInternalError(w)
	}
}

func outcome(err error) string {
	var verr *store.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return false
	}
	return true
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type createUsersRequest struct {
	Users []store.UserInput `json:"users"`
}

type updateUserRequest struct {
	User *store.UserInput `json:"user"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Store     string    `json:"store"`
	Timestamp time.Time `json:"timestamp"`
}

type fieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error   string       `json:"error"`
	Details string       `json:"details,omitempty"`
	Fields  []fieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}

func writeValidationError(w http.ResponseWriter, fields []fieldError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "Validation failed",
		Details: "one or more fields are invalid",
		Fields:  fields,
	})
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "Internal error", "unexpected store error")
}
