package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"prompt-studio/backend/internal/infra/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type resolverFunc func(ctx context.Context, bearer string) (*session.Identity, error)

func (f resolverFunc) Resolve(ctx context.Context, bearer string) (*session.Identity, error) {
	return f(ctx, bearer)
}

func whoami(c *gin.Context) {
	if identity := IdentityFrom(c); identity != nil {
		c.String(http.StatusOK, identity.ID)
		return
	}
	c.String(http.StatusOK, "anonymous")
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := resolverFunc(func(_ context.Context, bearer string) (*session.Identity, error) {
		switch bearer {
		case "good":
			return &session.Identity{ID: "alice"}, nil
		case "broken":
			return nil, errors.New("store unavailable")
		default:
			return nil, session.ErrUnauthenticated
		}
	})
	core, logs := observer.New(zapcore.WarnLevel)
	router := gin.New()
	router.Use(NewAuthMiddleware(resolver, zap.New(core).Sugar()).Handle())
	router.GET("/me", whoami)

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer good", "alice"},
		{"Bearer bad", "anonymous"},
		{"", "anonymous"},
		{"Bearer broken", "anonymous"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, tc.header)
		assert.Equal(t, tc.want, rec.Body.String(), tc.header)
	}
	// 只有存储异常才记录告警。
	assert.Equal(t, 1, logs.FilterMessage("resolve identity failed").Len())
}

func TestRequestLogAssignsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(RequestLog(zap.New(core).Sugar()))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
}
