package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		header     string
		expectSame bool
	}{
		{name: "generates an id when none is sent"},
		{name: "keeps the caller id", header: "req-42", expectSame: true},
		{name: "replaces an oversized id", header: strings.Repeat("x", maxCorrelationIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CorrelationID())
			var seen string
			router.GET("/wallets/:id/balance", func(c *gin.Context) {
				seen = GetCorrelationID(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/wallets/w1/balance", nil)
			if tt.header != "" {
				req.Header.Set(CorrelationIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			returned := rr.Header().Get(CorrelationIDHeader)
			assert.Equal(t, returned, seen)
			if tt.expectSame {
				assert.Equal(t, tt.header, returned)
				return
			}
			_, err := uuid.Parse(returned)
			assert.NoError(t, err, "generated correlation id should be a UUID")
		})
	}
}

func TestGetCorrelationID_OutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetCorrelationID(c))

	c.Set(CorrelationIDKey, 12345)
	assert.Empty(t, GetCorrelationID(c))
}
