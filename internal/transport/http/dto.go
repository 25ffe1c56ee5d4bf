package http

import (
	"time"

	"github.com/your-org/credguard/internal/domain"
)

// AuthRequest is the body of a verification request. Fields are pointers
// so a missing field is distinguishable from a zero value.
type AuthRequest struct {
	UserID *int64  `json:"user_id" validate:"required"`
	PIN    *string `json:"pin" validate:"required,max=128"`
}

// ToVerificationRequest converts a decoded request. A nil receiver or
// wellFormed == false yields a malformed request that still runs the full
// verification path.
func (r *AuthRequest) ToVerificationRequest(wellFormed bool) domain.VerificationRequest {
	if r == nil || !wellFormed || r.UserID == nil || r.PIN == nil {
		return domain.VerificationRequest{}
	}
	return domain.VerificationRequest{
		Identity:   domain.Identity(*r.UserID),
		Secret:     *r.PIN,
		WellFormed: true,
	}
}

// TokenResponse is returned on acceptance.
type TokenResponse struct {
	Token string `json:"token"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Mode      string                 `json:"mode,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// CheckResult represents a single health check result.
type CheckResult struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since,omitzero"`
}
