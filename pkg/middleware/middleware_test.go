package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, Lang(c, "none")) })
	r.POST("/api/heartbeats", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/api/events/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: "2-M", AddHeaders: true, SkipPaths: []string{"/api/events/"}}, nil)
	r := newEngine(rl.Middleware())

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/ping", nil).Code)
	w := do(r, http.MethodGet, "/api/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(r, http.MethodGet, "/api/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 跳过的路径不受限
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/events/u1", nil).Code)
	}
}

func TestRateLimiter_Whitelist(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: "1-M", WhitelistCIDRs: []string{"192.0.2.0/24"}}, nil)
	r := newEngine(rl.Middleware())
	for i := 0; i < 3; i++ {
		// httptest 的 RemoteAddr 为 192.0.2.1
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/ping", nil).Code)
	}
}

func TestLanguageMiddleware(t *testing.T) {
	r := newEngine(LanguageMiddleware("en", "ko"))

	assert.Equal(t, "en", do(r, http.MethodGet, "/api/ping", nil).Body.String())
	assert.Equal(t, "ko", do(r, http.MethodGet, "/api/ping?lang=ko", nil).Body.String())
	assert.Equal(t, "ko", do(r, http.MethodGet, "/api/ping", map[string]string{"Accept-Language": "ko-KR,ko;q=0.9"}).Body.String())
	assert.Equal(t, "en", do(r, http.MethodGet, "/api/ping?lang=fr", nil).Body.String())
}

func TestIdempotencyMiddleware(t *testing.T) {
	r := newEngine(IdempotencyMiddleware(IdempotencyConfig{}))

	h := map[string]string{"Idempotency-Key": "beat-1"}
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/heartbeats", h).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/heartbeats", h).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/heartbeats", nil).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/heartbeats", nil).Code)
}
