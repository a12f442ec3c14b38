package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pharmacy/internal/service"
	"pharmacy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", fmt.Errorf("pharmacy: %w", service.ErrNotFound), http.StatusNotFound, "pharmacy: not found"},
		{"invalid", fmt.Errorf("quantity must be positive: %w", service.ErrInvalidArgument), http.StatusBadRequest, "quantity must be positive: invalid argument"},
		{"insufficient stock", fmt.Errorf("requested 11: %w", service.ErrInsufficientStock), http.StatusConflict, "requested 11: insufficient stock"},
		{"conflict", service.ErrConflict, http.StatusConflict, "conflict"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "permission denied"},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"storage failure is hidden", errors.New("connection reset"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, tt.status, body.StatusCode)
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	newCtx := func(target string) (*gin.Context, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		return c, w
	}

	t.Run("required int missing", func(t *testing.T) {
		c, w := newCtx("/")
		_, ok := intQuery(c, "quantity", 0, true)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("optional int defaults", func(t *testing.T) {
		c, _ := newCtx("/")
		n, ok := intQuery(c, "preference", 1, false)
		assert.True(t, ok)
		assert.Equal(t, 1, n)
	})

	t.Run("int not numeric", func(t *testing.T) {
		c, w := newCtx("/?quantity=ten")
		_, ok := intQuery(c, "quantity", 0, true)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("date only cutoff", func(t *testing.T) {
		c, _ := newCtx("/?cutoff=2030-05-01")
		ts, ok := optionalTimeQuery(c, "cutoff")
		require.True(t, ok)
		require.NotNil(t, ts)
		assert.Equal(t, 2030, ts.Year())
		assert.Equal(t, 5, int(ts.Month()))
	})

	t.Run("bad uuid query", func(t *testing.T) {
		c, w := newCtx("/?pharmacy_id=nope")
		_, ok := optionalUUIDQuery(c, "pharmacy_id")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("absent uuid query", func(t *testing.T) {
		c, _ := newCtx("/")
		id, ok := optionalUUIDQuery(c, "pharmacy_id")
		assert.True(t, ok)
		assert.Nil(t, id)
	})
}
