// Package auth guards the streamable HTTP surface of a tool server with a
// static bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Verifier decides whether a presented token is acceptable.
type Verifier interface {
	Validate(ctx context.Context, token string) (*UserInfo, error)
	// Type returns the authentication type identifier, e.g. "bearer".
	Type() string
}

// UserInfo describes the authenticated caller.
type UserInfo struct {
	ID     string   `json:"id"`
	Scopes []string `json:"scopes,omitempty"`
}

// AuthError represents authentication errors.
type AuthError struct {
	// Code is the error code (e.g., "token_invalid")
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Common authentication error codes
const (
	ErrTokenInvalid = "token_invalid"
	ErrAuthRequired = "authentication_required"
)

// NewAuthError creates a new authentication error.
func NewAuthError(code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// StaticTokenVerifier accepts exactly one token.
type StaticTokenVerifier struct {
	token []byte
	id    string
}

// NewStaticTokenVerifier accepts token and reports callers as id.
func NewStaticTokenVerifier(token, id string) *StaticTokenVerifier {
	if id == "" {
		id = "toolbridge-client"
	}
	return &StaticTokenVerifier{token: []byte(token), id: id}
}

func (v *StaticTokenVerifier) Type() string { return "bearer" }

// Validate compares in constant time.
func (v *StaticTokenVerifier) Validate(_ context.Context, token string) (*UserInfo, error) {
	if token == "" {
		return nil, NewAuthError(ErrAuthRequired, "bearer token required")
	}
	if len(v.token) == 0 || subtle.ConstantTimeCompare([]byte(token), v.token) != 1 {
		return nil, NewAuthError(ErrTokenInvalid, "invalid bearer token")
	}
	return &UserInfo{ID: v.id, Scopes: []string{"tools"}}, nil
}

type contextKey string

const contextKeyUserInfo contextKey = "toolbridge_user_info"

// ContextWithUserInfo adds user info to the context.
func ContextWithUserInfo(ctx context.Context, userInfo *UserInfo) context.Context {
	return context.WithValue(ctx, contextKeyUserInfo, userInfo)
}

// UserInfoFromContext extracts user info from context.
func UserInfoFromContext(ctx context.Context) (*UserInfo, bool) {
	userInfo, ok := ctx.Value(contextKeyUserInfo).(*UserInfo)
	return userInfo, ok
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Middleware rejects requests without a valid bearer token with 401 and a
// JSON body {"error": code, "message": text}. A nil verifier lets every
// request through.
func Middleware(verifier Verifier, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := verifier.Validate(r.Context(), BearerToken(r))
			if err != nil {
				code := ErrTokenInvalid
				if authErr, ok := err.(*AuthError); ok {
					code = authErr.Code
				}
				logger.WithContext(r.Context()).Warn("request rejected",
					logging.String("path", r.URL.Path),
					logging.String("reason", code),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="toolbridge"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserInfo(r.Context(), info)))
		})
	}
}
