// Package token issues the opaque success token returned on acceptance.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/your-org/credguard/internal/domain"
)

// Config holds token settings.
type Config struct {
	// SigningKey is the HMAC key. A random key is generated when empty, which
	// invalidates tokens across restarts.
	SigningKey string        `mapstructure:"signing_key" jsonschema:"description=HS256 signing key (random per process when empty)"`
	Issuer     string        `mapstructure:"issuer" jsonschema:"description=Token issuer claim,default=credguard"`
	TTL        time.Duration `mapstructure:"ttl" jsonschema:"description=Token lifetime,default=15m"`
}

// Claims are the claims carried by an issued token.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs tokens for accepted identities.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Issuer{
		key:    key,
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue returns a signed token for id.
func (i *Issuer) Issue(id domain.Identity) (string, error) {
	now := i.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(int64(id), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := tok.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token issued by i and returns the identity it names.
func (i *Issuer) Parse(tokenString string) (domain.Identity, error) {
	claims := &Claims{}

	tok, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return 0, err
	}
	if !tok.Valid {
		return 0, errors.New("invalid token")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", claims.Subject, err)
	}
	return domain.Identity(id), nil
}
