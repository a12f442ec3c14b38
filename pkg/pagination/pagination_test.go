package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/items?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Skip: 0, Limit: 100}},
		{"skip=20&limit=10", Params{Skip: 20, Limit: 10}},
		{"skip=-5&limit=0", Params{Skip: 0, Limit: 100}},
		{"skip=abc&limit=xyz", Params{Skip: 0, Limit: 100}},
		{"limit=10000", Params{Skip: 0, Limit: MaxLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, parseQuery(tt.query))
		})
	}
}
