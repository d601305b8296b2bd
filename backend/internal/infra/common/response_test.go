package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFailAndAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	reached := false
	router.GET("/fail", func(c *gin.Context) { Fail(c, 0, ErrInternal, "boom") })
	router.GET("/abort", func(c *gin.Context) { Abort(c, http.StatusForbidden, ErrForbidden, "nope") }, func(c *gin.Context) { reached = true })
	router.GET("/ok", func(c *gin.Context) { Success(c, 0, gin.H{"status": "ok"}) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"boom","code":"INTERNAL_ERROR"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abort", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"nope","code":"FORBIDDEN"}`, rec.Body.String())
	assert.False(t, reached, "abort must stop the chain")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
