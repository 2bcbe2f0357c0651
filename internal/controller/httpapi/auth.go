package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Claims identify the caller. Tokens are minted by the account subsystem;
// the role is always re-read from the store.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.StandardClaims
}

var errNoToken = errors.New("missing bearer token")

// IssueToken signs an HS256 token for userID.
func IssueToken(secret []byte, userID int64, ttl time.Duration, now time.Time) (string, error) {
	claims := &Claims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, header string) (int64, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" || raw == header {
		return 0, errNoToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	if claims.UserID <= 0 {
		return 0, errors.New("token has no user_id")
	}
	return claims.UserID, nil
}

type callerKey struct{}

// caller is shared between observe and authenticate so the request log can
// name the user.
type caller struct {
	userID int64
}

func withCaller(ctx context.Context) (context.Context, *caller) {
	if c, ok := ctx.Value(callerKey{}).(*caller); ok {
		return ctx, c
	}
	c := &caller{}
	return context.WithValue(ctx, callerKey{}, c), c
}

func callerFrom(ctx context.Context) int64 {
	if c, ok := ctx.Value(callerKey{}).(*caller); ok {
		return c.userID
	}
	return 0
}

// authenticate rejects requests without a valid bearer token.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseToken(s.secret, r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "valid bearer token required")
			return
		}
		ctx, c := withCaller(r.Context())
		c.userID = userID
		next(w, r.WithContext(ctx))
	}
}
