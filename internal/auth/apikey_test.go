package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newProtectedRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(secret))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return r
}

func request(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/protected", nil)
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestAPIKeyMiddlewareAccepts(t *testing.T) {
	res := request(newProtectedRouter("secret"), "secret")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestAPIKeyMiddlewareRejectsMismatch(t *testing.T) {
	res := request(newProtectedRouter("secret"), "wrong")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.JSONEq(t, `{"detail": "Unauthorized"}`, res.Body.String())
}

func TestAPIKeyMiddlewareRejectsMissingHeader(t *testing.T) {
	res := request(newProtectedRouter("secret"), "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAPIKeyMiddlewareRejectsEverythingWhenUnconfigured(t *testing.T) {
	// An empty secret must fail closed, even for an empty header.
	res := request(newProtectedRouter(""), "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
