// Package probe implements the timing-analysis harness: sampling, anomaly
// detection over a timing profile, and secret search against a verifier.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/pkg/errors"
	"github.com/your-org/credguard/pkg/resilience/circuitbreaker"
)

// TargetBreaker names the circuit breaker guarding the verification endpoint.
const TargetBreaker = "target"

// Outcome is one verification as seen by the client.
type Outcome struct {
	Accepted bool
	Token    string

	// Elapsed is the client-observed latency, round trip included
	Elapsed time.Duration
}

// Oracle performs one verification attempt. A rejected attempt is a
// successful call with Accepted == false; errors are measurement failures.
type Oracle interface {
	Attempt(ctx context.Context, id domain.Identity, secret string) (Outcome, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, id domain.Identity, secret string) (Outcome, error)

// Attempt calls f.
func (f OracleFunc) Attempt(ctx context.Context, id domain.Identity, secret string) (Outcome, error) {
	return f(ctx, id, secret)
}

type authRequest struct {
	UserID domain.Identity `json:"user_id"`
	PIN    string          `json:"pin"`
}

type authResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// HTTPOracle talks to a verifier over HTTP.
type HTTPOracle struct {
	client  *http.Client
	url     string
	breaker *circuitbreaker.Breaker[Outcome]
}

// HTTPOracleOption configures an HTTPOracle.
type HTTPOracleOption func(*HTTPOracle)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOracleOption {
	return func(o *HTTPOracle) {
		o.client = c
	}
}

// WithCircuitBreaker guards every request with b.
func WithCircuitBreaker(b *circuitbreaker.Breaker[Outcome]) HTTPOracleOption {
	return func(o *HTTPOracle) {
		o.breaker = b
	}
}

// NewHTTPOracle creates an oracle posting to baseURL+authPath.
func NewHTTPOracle(baseURL, authPath string, opts ...HTTPOracleOption) *HTTPOracle {
	o := &HTTPOracle{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		url: strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(authPath, "/"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// URL returns the verification endpoint.
func (o *HTTPOracle) URL() string {
	return o.url
}

// Attempt posts one credential pair. Deadlines come from ctx.
func (o *HTTPOracle) Attempt(ctx context.Context, id domain.Identity, secret string) (Outcome, error) {
	body, err := json.Marshal(authRequest{UserID: id, PIN: secret})
	if err != nil {
		return Outcome{}, err
	}

	return o.breaker.Execute(ctx, func() (Outcome, error) {
		return o.do(ctx, body)
	})
}

func (o *HTTPOracle) do(ctx context.Context, body []byte) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", errors.ErrTargetUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	elapsed := time.Since(start)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: reading response: %w", errors.ErrTargetUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var payload authResponse
		if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
			return Outcome{}, fmt.Errorf("%w: status 200 without token", errors.ErrUnexpectedResponse)
		}
		return Outcome{Accepted: true, Token: payload.Token, Elapsed: elapsed}, nil

	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusForbidden:
		return Outcome{Elapsed: elapsed}, nil

	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return Outcome{}, fmt.Errorf("%w: status %d", errors.ErrTargetUnavailable, resp.StatusCode)

	default:
		return Outcome{}, fmt.Errorf("%w: status %d", errors.ErrUnexpectedResponse, resp.StatusCode)
	}
}

// Verifier is the in-process verification contract.
type Verifier interface {
	Verify(req domain.VerificationRequest) domain.VerificationResult
}

// TokenIssuer signs a token for an accepted identity.
type TokenIssuer interface {
	Issue(id domain.Identity) (string, error)
}

// VerifierOracle calls a verifier directly, without a network hop.
type VerifierOracle struct {
	verifier Verifier
	issuer   TokenIssuer
}

// NewVerifierOracle creates an in-process oracle. issuer may be nil.
func NewVerifierOracle(v Verifier, issuer TokenIssuer) *VerifierOracle {
	return &VerifierOracle{verifier: v, issuer: issuer}
}

// Attempt runs one verification and measures its wall time.
func (o *VerifierOracle) Attempt(ctx context.Context, id domain.Identity, secret string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	result := o.verifier.Verify(domain.VerificationRequest{Identity: id, Secret: secret, WellFormed: true})
	elapsed := time.Since(start)

	out := Outcome{Accepted: result.Outcome.IsAccepted(), Elapsed: elapsed}
	if out.Accepted && o.issuer != nil {
		tok, err := o.issuer.Issue(id)
		if err != nil {
			return Outcome{}, err
		}
		out.Token = tok
	}
	return out, nil
}
