package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"laundry-reservation-backend/config"
	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/mw"
	"laundry-reservation-backend/internal/parse"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	limit := rate.Inf
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(limit, cfg.RateLimitBurst)

	// Machine reads are cached briefly; zero disables caching.
	var caching gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.CacheTTLSeconds > 0 {
		cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
		cacheStore := cache.New(cacheTTL, 2*cacheTTL)
		caching = mw.Cache(cacheStore, cacheTTL)

		// Any write to a machine, including releases by the dispatcher,
		// drops its cached reads.
		if handler.store != nil {
			handler.store.OnMachineUpdate(func(ctx context.Context, before, after model.Machine) error {
				evictMachine(cacheStore, after.Path())
				return nil
			})
		}
	}

	// Callbacks from the deferred-execution service are not rate limited
	// per IP; they all come from the same place.
	tasks := r.Group("/api/tasks")
	{
		// POST /api/tasks/execute
		tasks.POST("/execute", handler.ExecuteTask)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// /api/machines/countries/{c}/cities/{ci}/universities/{u}/dorms/{d}/machines/{m}
		api.GET("/machines/*doc", caching, handler.GetMachine)
		api.PUT("/machines/*doc", handler.PutMachine)

		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

func evictMachine(store *cache.Cache, path model.MachinePath) {
	mw.Evict(store, func(reqPath string) bool {
		doc, ok := strings.CutPrefix(reqPath, "/api/machines")
		if !ok {
			return false
		}
		p, err := parse.MachinePath(doc)
		return err == nil && p == path
	})
}
