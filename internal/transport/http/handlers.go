package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/credstore"
	"github.com/your-org/credguard/internal/service/metrics"
	"github.com/your-org/credguard/internal/service/verifier"
	"github.com/your-org/credguard/pkg/httputil"
	"github.com/your-org/credguard/pkg/logger"
)

// Verifier checks credentials.
type Verifier interface {
	Verify(req domain.VerificationRequest) domain.VerificationResult
	Mode() string
}

// TokenIssuer signs the success token.
type TokenIssuer interface {
	Issue(id domain.Identity) (string, error)
}

// SnapshotSource exposes the current credential snapshot for readiness.
type SnapshotSource interface {
	Snapshot() *credstore.Snapshot
}

var (
	// rejected is the only failure response in hardened mode.
	rejected = httputil.NewFixedResponse(http.StatusUnauthorized,
		httputil.ErrorResponse{Error: "invalid credentials"})

	// badRequest is the legacy response for malformed input.
	badRequest = httputil.NewFixedResponse(http.StatusBadRequest,
		httputil.ErrorResponse{Error: "bad request"})
)

// Handler contains HTTP handlers for the verifier service.
type Handler struct {
	verifier      Verifier
	issuer        TokenIssuer
	store         SnapshotSource
	validate      *validator.Validate
	metrics       *metrics.Metrics
	version       string
	responseFloor time.Duration
	maxBodyBytes  int64
}

// HandlerOption is a functional option for configuring the Handler.
type HandlerOption func(*Handler)

// WithResponseFloor pads every verification response to at least d.
func WithResponseFloor(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.responseFloor = d
	}
}

// WithMaxBodyBytes limits the request body size.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates a new HTTP handler.
func NewHandler(v Verifier, issuer TokenIssuer, store SnapshotSource, version string, opts ...HandlerOption) *Handler {
	h := &Handler{
		verifier:     v,
		issuer:       issuer,
		store:        store,
		validate:     validator.New(),
		metrics:      metrics.DefaultMetrics,
		version:      version,
		maxBodyBytes: 4 << 10,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Auth handles POST /auth.
//
// In hardened mode every failure, including an undecodable body, produces
// the same 401 response after a full verification. Legacy mode answers
// malformed input with 400 immediately.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, wellFormed := h.decode(r)
	if !wellFormed && h.verifier.Mode() == verifier.ModeLegacy {
		badRequest.Write(w)
		return
	}

	result := h.verifier.Verify(req.ToVerificationRequest(wellFormed))
	h.metrics.RecordVerification(h.verifier.Mode(), result.Outcome.String(), result.Elapsed)

	var tok string
	if result.Outcome.IsAccepted() {
		var err error
		tok, err = h.issuer.Issue(domain.Identity(*req.UserID))
		if err != nil {
			logger.WithContext(r.Context()).Error("token issue failed", logger.Err(err))
			result.Outcome = domain.Rejected
		}
	}

	h.pad(r.Context(), start)

	if result.Outcome.IsAccepted() {
		httputil.WriteJSON(w, http.StatusOK, TokenResponse{Token: tok})
		return
	}
	rejected.Write(w)
}

// decode reads and validates the body. It never short-circuits on the
// content of the credential itself.
func (h *Handler) decode(r *http.Request) (*AuthRequest, bool) {
	body := io.LimitReader(r.Body, h.maxBodyBytes)

	var req AuthRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return nil, false
	}
	if err := h.validate.Struct(&req); err != nil {
		return nil, false
	}
	return &req, true
}

// pad sleeps until start+floor. The floor is the same for every request.
func (h *Handler) pad(ctx context.Context, start time.Time) {
	if h.responseFloor <= 0 {
		return
	}
	remaining := h.responseFloor - time.Since(start)
	if remaining <= 0 {
		return
	}

	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Health handles health check requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]CheckResult{
		"credentials": h.credentialsCheck(),
	}

	status := "healthy"
	statusCode := http.StatusOK
	for _, check := range checks {
		if check.Status != "healthy" {
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
			break
		}
	}

	httputil.WriteJSON(w, statusCode, &HealthResponse{
		Status:    status,
		Mode:      h.verifier.Mode(),
		Checks:    checks,
		Version:   h.version,
		Timestamp: time.Now(),
	})
}

// Ready handles readiness check requests.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if check := h.credentialsCheck(); check.Status != "healthy" {
		httputil.WriteError(w, http.StatusServiceUnavailable, "service not ready")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Live handles liveness check requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) credentialsCheck() CheckResult {
	snap := h.store.Snapshot()
	if snap == nil || snap.Len() == 0 {
		return CheckResult{Status: "unhealthy", Message: "no credentials provisioned"}
	}
	return CheckResult{
		Status:  "healthy",
		Message: fmt.Sprintf("%d records from %s", snap.Len(), snap.Source()),
		Since:   snap.CreatedAt(),
	}
}

// requestLogger is a middleware that logs HTTP requests.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.WithContext(r.Context()).Debug("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("remote_addr", r.RemoteAddr),
		)
	})
}
