package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"pharmacy/internal/auth"
	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/service"
	"pharmacy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// AccessTokenCookie carries the token for browser clients.
	AccessTokenCookie = "access_token"

	actorKey = "actor"
)

// ActorResolver loads the current state of the user behind a token, so that
// deactivation and role changes apply to tokens already issued.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID uuid.UUID) (policy.Actor, error)
}

type Authenticator struct {
	tokens   *auth.TokenManager
	resolver ActorResolver
}

func NewAuthenticator(tokens *auth.TokenManager, resolver ActorResolver) *Authenticator {
	return &Authenticator{tokens: tokens, resolver: resolver}
}

// SetTokenCookie stores the access token as an HttpOnly cookie.
// Cross-origin deployments need secure=true, which switches SameSite to None.
func SetTokenCookie(c *gin.Context, token string, ttl time.Duration, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, token, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie
func ClearTokenCookie(c *gin.Context, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
}

func extractToken(c *gin.Context, allowQuery bool) (string, string) {
	// Browsers cannot set headers on websocket dials, so streams may pass the
	// token as a query parameter.
	if allowQuery {
		if token := c.Query("token"); token != "" {
			return token, ""
		}
	}
	// Try cookie first, fallback to Authorization header
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, ""
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// Authenticate validates the access token and stores the resolved actor in the
// gin context.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return a.authenticate(false)
}

// AuthenticateStream is Authenticate for websocket upgrades, which also accept
// the token query parameter.
func (a *Authenticator) AuthenticateStream() gin.HandlerFunc {
	return a.authenticate(true)
}

func (a *Authenticator) authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := extractToken(c, allowQuery)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
			return
		}

		claims, err := a.tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token subject"))
			return
		}

		actor, err := a.resolver.ResolveActor(c.Request.Context(), userID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrForbidden):
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
			case errors.Is(err, service.ErrUnauthorized):
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to resolve user"))
			}
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated actor has one of roles.
// It must run after Authenticate.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(c *gin.Context) (policy.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return policy.Actor{}, false
	}
	actor, ok := v.(policy.Actor)
	return actor, ok
}
