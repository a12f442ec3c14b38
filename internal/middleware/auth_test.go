package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pharmacy/internal/auth"
	"pharmacy/internal/model"
	"pharmacy/internal/policy"
	"pharmacy/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver map[uuid.UUID]policy.Actor

func (s stubResolver) ResolveActor(_ context.Context, id uuid.UUID) (policy.Actor, error) {
	actor, ok := s[id]
	if !ok {
		return policy.Actor{}, fmt.Errorf("unknown user: %w", service.ErrUnauthorized)
	}
	if actor.Role == "" {
		return policy.Actor{}, fmt.Errorf("user is inactive: %w", service.ErrForbidden)
	}
	return actor, nil
}

func setupRouter(t *testing.T, resolver ActorResolver, roles ...model.Role) (*gin.Engine, *auth.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := auth.NewTokenManager([]byte("test-secret"), time.Hour)
	authn := NewAuthenticator(tokens, resolver)

	r := gin.New()
	r.GET("/protected", authn.Authenticate(), RequireRole(roles...), func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.String(http.StatusOK, string(actor.Role))
	})
	return r, tokens
}

func issue(t *testing.T, tokens *auth.TokenManager, id uuid.UUID, role model.Role) string {
	t.Helper()
	u := &model.User{Role: role}
	u.ID = id
	token, err := tokens.Issue(u)
	require.NoError(t, err)
	return token
}

func TestAuthenticateBearer(t *testing.T) {
	id := uuid.New()
	r, tokens := setupRouter(t, stubResolver{id: {UserID: id, Role: model.RoleDirector}}, model.RoleDirector)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens, id, model.RoleDirector))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "director", w.Body.String())
}

func TestAuthenticateCookie(t *testing.T) {
	id := uuid.New()
	r, tokens := setupRouter(t, stubResolver{id: {UserID: id, Role: model.RoleAdmin}}, model.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: issue(t, tokens, id, model.RoleAdmin)})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticateFailures(t *testing.T) {
	active := uuid.New()
	inactive := uuid.New()
	resolver := stubResolver{
		active:   {UserID: active, Role: model.RoleSupplier},
		inactive: {UserID: inactive},
	}
	r, tokens := setupRouter(t, resolver, model.RoleAdmin)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"unknown user", "Bearer " + issue(t, tokens, uuid.New(), model.RoleAdmin), http.StatusUnauthorized},
		{"inactive user", "Bearer " + issue(t, tokens, inactive, model.RoleAdmin), http.StatusForbidden},
		{"wrong role", "Bearer " + issue(t, tokens, active, model.RoleSupplier), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthenticateRejectsMalformedSubject(t *testing.T) {
	calls := 0
	resolver := resolverFunc(func(context.Context, uuid.UUID) (policy.Actor, error) {
		calls++
		return policy.Actor{Role: model.RoleAdmin}, nil
	})
	r, _ := setupRouter(t, resolver, model.RoleAdmin)

	claims := jwt.MapClaims{
		"sub":  "not-a-uuid",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, calls)
}

func TestAuthenticateStreamAcceptsQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	id := uuid.New()
	tokens := auth.NewTokenManager([]byte("test-secret"), time.Hour)
	authn := NewAuthenticator(tokens, stubResolver{id: {UserID: id, Role: model.RoleDirector}})

	r := gin.New()
	r.GET("/stream", authn.AuthenticateStream(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/plain", authn.Authenticate(), func(c *gin.Context) { c.Status(http.StatusOK) })

	token := issue(t, tokens, id, model.RoleDirector)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type resolverFunc func(context.Context, uuid.UUID) (policy.Actor, error)

func (f resolverFunc) ResolveActor(ctx context.Context, id uuid.UUID) (policy.Actor, error) {
	return f(ctx, id)
}
