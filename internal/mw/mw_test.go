package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiter_ReusesLimiter(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)
	assert.Same(t, l.GetLimiter("10.0.0.1"), l.GetLimiter("10.0.0.1"))
	assert.NotSame(t, l.GetLimiter("10.0.0.1"), l.GetLimiter("10.0.0.2"))
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/machine", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	get := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/machine", nil)
		if header != "" {
			req.Header.Set("Cache-Control", header)
		}
		r.ServeHTTP(w, req)
		return w
	}

	first := get("")
	assert.JSONEq(t, `{"calls":1}`, first.Body.String())

	second := get("")
	assert.JSONEq(t, `{"calls":1}`, second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	fresh := get("no-cache")
	assert.JSONEq(t, `{"calls":2}`, fresh.Body.String())

	assert.JSONEq(t, `{"calls":2}`, get("").Body.String())
}

func TestEvict(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	store.Set("/machines/m1?", "a", time.Minute)
	store.Set("/machines/m1?verbose=1", "b", time.Minute)
	store.Set("/machines/m2?", "c", time.Minute)

	Evict(store, func(path string) bool { return path == "/machines/m1" })

	assert.Equal(t, 1, store.ItemCount())
	_, found := store.Get("/machines/m2?")
	assert.True(t, found)
}
