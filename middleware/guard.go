package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/permission"
)

// Authenticator is the part of *feedbackAuth.Engine the guards need.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*feedbackAuth.Identity, error)
	Authorize(identity *feedbackAuth.Identity, required permission.Role) bool
}

type identityContextKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *feedbackAuth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*feedbackAuth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*feedbackAuth.Identity)
	return id, ok && id != nil
}

// Problem is the JSON error body written by the guards.
type Problem struct {
	Detail string `json:"detail"`
}

const (
	detailMissing     = "authentication credentials were not provided"
	detailInvalid     = "token is invalid or expired"
	detailForbidden   = "access denied"
	detailUnavailable = "service temporarily unavailable"
)

// Guard authenticates net/http requests and optionally enforces a minimum
// role. Pass an empty role to only require authentication.
// It panics when required is neither empty nor a known role.
func Guard(auth Authenticator, required permission.Role) func(http.Handler) http.Handler {
	mustRole(required)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, status, detail := check(r, auth, required)
			if status != 0 {
				w.Header().Set("Content-Type", "application/json")
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				}
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"detail":"` + detail + `"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAuth is the gin form of Guard without a role requirement.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return RequireRole(auth, "")
}

// RequireRole authenticates the request and requires at least role. Like
// Guard it panics on an unknown role.
func RequireRole(auth Authenticator, required permission.Role) gin.HandlerFunc {
	mustRole(required)
	return func(c *gin.Context) {
		identity, status, detail := check(c.Request, auth, required)
		if status != 0 {
			if status == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", `Bearer realm="api"`)
			}
			c.AbortWithStatusJSON(status, Problem{Detail: detail})
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

func mustRole(required permission.Role) {
	if required != "" && !required.Valid() {
		panic(fmt.Sprintf("middleware: unknown role %q", required))
	}
}

func check(r *http.Request, auth Authenticator, required permission.Role) (*feedbackAuth.Identity, int, string) {
	if auth == nil {
		return nil, http.StatusUnauthorized, detailInvalid
	}
	// A guard further up the chain may already have authenticated.
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		token, found := bearerToken(r.Header.Get("Authorization"))
		if !found {
			return nil, http.StatusUnauthorized, detailMissing
		}
		var err error
		identity, err = auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, feedbackAuth.ErrStoreUnavailable) {
				return nil, http.StatusServiceUnavailable, detailUnavailable
			}
			return nil, http.StatusUnauthorized, detailInvalid
		}
	}
	if required != "" && !auth.Authorize(identity, required) {
		return nil, http.StatusForbidden, detailForbidden
	}
	return identity, 0, ""
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
