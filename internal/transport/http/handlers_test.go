package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/credstore"
	"github.com/your-org/credguard/internal/service/kdf"
	"github.com/your-org/credguard/internal/service/token"
	"github.com/your-org/credguard/internal/service/verifier"
)

type testEnv struct {
	server *httptest.Server
	issuer *token.Issuer
	store  *credstore.Store
}

func newTestEnv(t *testing.T, mode string, opts ...HandlerOption) *testEnv {
	t.Helper()

	d, err := kdf.New(kdf.Params{Iterations: 10, KeyLength: 32, SaltLength: 16})
	require.NoError(t, err)
	store, err := credstore.New(d, credstore.DefaultSeeds())
	require.NoError(t, err)
	v, err := verifier.New(verifier.Config{Mode: mode}, store, d)
	require.NoError(t, err)
	issuer, err := token.NewIssuer(token.Config{Issuer: "credguard-test"})
	require.NoError(t, err)

	h := NewHandler(v, issuer, store, "test", opts...)
	srv := NewServer(ServerConfig{
		HTTP: config.HTTPServerConfig{Addr: ":0", RequestTimeout: 5 * time.Second},
		Endpoints: config.EndpointsConfig{
			Auth:    "/auth",
			Health:  "/health",
			Ready:   "/ready",
			Live:    "/live",
			Metrics: "/metrics",
		},
	}, h)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, issuer: issuer, store: store}
}

func (e *testEnv) post(t *testing.T, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/auth", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestAuth_Accepted(t *testing.T) {
	for _, mode := range []string{verifier.ModeHardened, verifier.ModeLegacy} {
		t.Run(mode, func(t *testing.T) {
			env := newTestEnv(t, mode)

			status, body := env.post(t, `{"user_id": 1001, "pin": "12345678"}`)
			require.Equal(t, http.StatusOK, status)

			var resp TokenResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			require.NotEmpty(t, resp.Token)

			id, err := env.issuer.Parse(resp.Token)
			require.NoError(t, err)
			assert.Equal(t, domain.Identity(1001), id)
		})
	}
}

func TestAuth_Hardened_UniformRejection(t *testing.T) {
	env := newTestEnv(t, verifier.ModeHardened)

	bodies := map[string]string{
		"wrong secret":     `{"user_id": 1001, "pin": "87654321"}`,
		"unknown identity": `{"user_id": 9999, "pin": "12345678"}`,
		"dummy secret":     `{"user_id": 9999, "pin": "00000000"}`,
		"missing pin":      `{"user_id": 1001}`,
		"missing user":     `{"pin": "12345678"}`,
		"string user id":   `{"user_id": "1001", "pin": "12345678"}`,
		"not json":         `user_id=1001&pin=12345678`,
		"empty body":       ``,
	}

	var reference []byte
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			status, data := env.post(t, body)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.JSONEq(t, `{"error":"invalid credentials"}`, string(data))

			if reference == nil {
				reference = data
			}
			assert.Equal(t, reference, data, "rejection bodies must be byte-identical")
		})
	}
}

// countingVerifier rejects everything and records what it was asked.
type countingVerifier struct {
	mode string

	mu    sync.Mutex
	calls []domain.VerificationRequest
}

func (v *countingVerifier) Verify(req domain.VerificationRequest) domain.VerificationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, req)
	return domain.VerificationResult{Outcome: domain.Rejected}
}

func (v *countingVerifier) Mode() string { return v.mode }

func (v *countingVerifier) reset() []domain.VerificationRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	calls := v.calls
	v.calls = nil
	return calls
}

func TestAuth_Hardened_MalformedInputIsVerified(t *testing.T) {
	issuer, err := token.NewIssuer(token.Config{})
	require.NoError(t, err)
	v := &countingVerifier{mode: verifier.ModeHardened}
	h := NewHandler(v, issuer, nil, "test")

	for name, body := range map[string]string{
		"missing pin":    `{"user_id": 1001}`,
		"missing user":   `{"pin": "12345678"}`,
		"string user id": `{"user_id": "1001", "pin": "12345678"}`,
		"not json":       `user_id=1001&pin=12345678`,
		"empty body":     ``,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Auth(rec, httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(body)))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())

			calls := v.reset()
			require.Len(t, calls, 1, "malformed input must still run one verification")
			assert.False(t, calls[0].WellFormed)
		})
	}
}

func TestAuth_Legacy_MalformedInputSkipsVerification(t *testing.T) {
	issuer, err := token.NewIssuer(token.Config{})
	require.NoError(t, err)
	v := &countingVerifier{mode: verifier.ModeLegacy}
	h := NewHandler(v, issuer, nil, "test")

	rec := httptest.NewRecorder()
	h.Auth(rec, httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"user_id": 1001}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, v.reset())
}

func TestAuth_Legacy_BadRequest(t *testing.T) {
	env := newTestEnv(t, verifier.ModeLegacy)

	status, data := env.post(t, `{"user_id": 1001}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"bad request"}`, string(data))

	status, _ = env.post(t, `{"user_id": 9999, "pin": "12345678"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuth_ResponseFloor(t *testing.T) {
	floor := 50 * time.Millisecond
	env := newTestEnv(t, verifier.ModeHardened, WithResponseFloor(floor))

	for _, body := range []string{
		`{"user_id": 1001, "pin": "12345678"}`,
		`{"user_id": 9999, "pin": "12345678"}`,
		`garbage`,
	} {
		start := time.Now()
		env.post(t, body)
		assert.GreaterOrEqual(t, time.Since(start), floor)
	}
}

func TestAuth_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, verifier.ModeHardened)

	resp, err := http.Get(env.server.URL + "/auth")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, verifier.ModeHardened)

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusOK},
		{"/healthz", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/live", http.StatusOK},
		{"/livez", http.StatusOK},
		{"/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(env.server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHealth_ReportsMode(t *testing.T) {
	env := newTestEnv(t, verifier.ModeLegacy)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, verifier.ModeLegacy, health.Mode)

	check := health.Checks["credentials"]
	snap := env.store.Snapshot()
	assert.Equal(t, "healthy", check.Status)
	assert.Equal(t, fmt.Sprintf("%d records from inline", snap.Len()), check.Message)
	assert.True(t, snap.CreatedAt().Equal(check.Since), "since %v, built %v", check.Since, snap.CreatedAt())
}

func TestAuthRequest_ToVerificationRequest(t *testing.T) {
	id := int64(1001)
	pin := "12345678"

	var nilReq *AuthRequest
	assert.False(t, nilReq.ToVerificationRequest(true).WellFormed)

	req := &AuthRequest{UserID: &id, PIN: &pin}
	assert.False(t, req.ToVerificationRequest(false).WellFormed)

	got := req.ToVerificationRequest(true)
	assert.True(t, got.WellFormed)
	assert.Equal(t, domain.Identity(1001), got.Identity)
	assert.Equal(t, pin, got.Secret)
}
