package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const PageContextKey contextKey = "page_context_id"

var ErrTokenExpired = errors.New("token has expired")

// ContextTokens issues and verifies page context tokens. A token names
// exactly one page context; every result for that page is routed by it.
type ContextTokens struct {
	Secret []byte
	TTL    time.Duration
}

func NewContextTokens(secret string, ttl time.Duration) *ContextTokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &ContextTokens{Secret: []byte(secret), TTL: ttl}
}

// Issue mints a new page context id and its token.
func (j *ContextTokens) Issue() (contextID, token string, expiresAt time.Time, err error) {
	contextID = uuid.NewString()
	now := time.Now()
	expiresAt = now.Add(j.TTL)

	claims := jwt.MapClaims{
		"context_id": contextID,
		"exp":        expiresAt.Unix(),
		"iat":        now.Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
	return contextID, token, expiresAt, err
}

// Verify returns the page context id a token was issued for.
func (j *ContextTokens) Verify(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	contextID, _ := claims["context_id"].(string)
	if _, err := uuid.Parse(contextID); err != nil {
		return "", jwt.ErrTokenInvalidClaims
	}
	return contextID, nil
}

// Middleware requires a Bearer page context token and attaches its id.
func (j *ContextTokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		contextID, err := j.Verify(parts[1])
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				WriteError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		ctx := context.WithValue(r.Context(), PageContextKey, contextID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetContextID extracts the page context id from request context
func GetContextID(ctx context.Context) string {
	id, _ := ctx.Value(PageContextKey).(string)
	return id
}

func WriteError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
