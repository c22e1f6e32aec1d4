// Package identity resolves an HTTP bearer token into the principal and
// device identifiers the rest of the gateway operates on. It is invoked
// before the orchestrator; a resolution failure yields HTTP 401 with no
// quota consumption.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the resolved caller: the user the journal belongs to, and
// the device the request originated from.
type Principal struct {
	UserID   string
	DeviceID string
}

// ErrAuthRequired is returned for any bearer token that fails to resolve:
// missing header, malformed token, bad signature, or expired claims. The
// caller must not distinguish these cases in its response.
var ErrAuthRequired = errors.New("identity: authentication required")

// Resolver resolves a raw Authorization header value into a Principal.
type Resolver interface {
	Resolve(ctx context.Context, authorizationHeader string) (Principal, error)
}

// JWTResolver verifies HMAC-signed (HS256/HS384/HS512) bearer tokens against
// a shared secret.
// The `sub` claim becomes UserID; an optional `device_id` claim becomes
// DeviceID (empty if absent).
type JWTResolver struct {
	secret []byte
	leeway time.Duration
}

func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{secret: secret, leeway: 60 * time.Second}
}

func (r *JWTResolver) Resolve(_ context.Context, authorizationHeader string) (Principal, error) {
	raw, ok := bearerToken(authorizationHeader)
	if !ok {
		return Principal{}, ErrAuthRequired
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return r.secret, nil
	}, jwt.WithLeeway(r.leeway))
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrAuthRequired
	}

	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return Principal{}, fmt.Errorf("%w: missing sub claim", ErrAuthRequired)
	}
	deviceID, _ := claims["device_id"].(string)

	return Principal{UserID: sub, DeviceID: deviceID}, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
