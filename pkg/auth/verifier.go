// Package auth verifies the bearer credentials that gate the detailed
// prediction view.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Siyabonga8/winmastersai/pkg/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ErrInvalidCredential is the only error Verify returns. Missing, malformed,
// expired and badly signed tokens are deliberately indistinguishable.
var ErrInvalidCredential = errors.New("invalid credential")

const bearerScheme = "bearer "

// Claims is the verified claim set of a bearer token.
type Claims struct {
	// Subscribed marks a paying subscriber allowed to see detailed predictions.
	Subscribed bool `json:"subscribed"`

	jwt.RegisteredClaims
}

// Verifier validates HS256-signed bearer tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
	logger zerolog.Logger
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}

	v := &Verifier{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
		logger: logging.NewLogger("auth"),
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v, nil
}

// Verify checks the raw Authorization header value and returns its claims.
// An optional "Bearer " prefix is accepted in any letter case.
func (v *Verifier) Verify(rawHeader string) (*Claims, error) {
	token := stripScheme(rawHeader)
	if token == "" {
		return nil, ErrInvalidCredential
	}

	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		// The cause stays in the debug log; callers only ever see one outcome.
		v.logger.Debug().Err(err).Msg("Credential rejected")
		return nil, ErrInvalidCredential
	}

	return claims, nil
}

// Issue signs a token for subject. A zero ttl issues a token without expiry.
func (v *Verifier) Issue(subject string, subscribed bool, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Subscribed: subscribed,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func stripScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= len(bearerScheme) && strings.EqualFold(raw[:len(bearerScheme)], bearerScheme) {
		raw = raw[len(bearerScheme):]
	}
	return strings.TrimSpace(raw)
}
