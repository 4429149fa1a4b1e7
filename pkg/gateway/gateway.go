// Package gateway wires the push subsystem behind an HTTP API: the
// subscription lifecycle, notification dispatch, the service-worker
// delivery pipeline, foreground client fan-out, and the asset cache.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/hs2504785/greenspace-push/pkg/assetcache"
	"github.com/hs2504785/greenspace-push/pkg/auth"
	"github.com/hs2504785/greenspace-push/pkg/config"
	"github.com/hs2504785/greenspace-push/pkg/fanout"
	"github.com/hs2504785/greenspace-push/pkg/guardrails"
	"github.com/hs2504785/greenspace-push/pkg/notification"
	"github.com/hs2504785/greenspace-push/pkg/worker"
)

// Gateway is the HTTP push gateway server
type Gateway struct {
	config     *config.Config
	echo       *echo.Echo
	verbose    bool
	service    *notification.Service
	registry   *fanout.Registry
	notifier   *fanout.Notifier
	worker     *worker.Handler
	clicks     *worker.ClickRouter
	controller *worker.Controller
	cache      *assetcache.Manager
	cron       *cron.Cron
	redis      *redis.Client
}

// NewGateway creates a gateway instance from configuration
func NewGateway(cfg *config.Config, verbose bool) *Gateway {
	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Requested-With", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	g := &Gateway{
		config:   cfg,
		echo:     e,
		verbose:  verbose,
		registry: fanout.NewRegistry(),
	}

	if verbose {
		e.Use(g.loggingMiddleware())
	}
	e.Use(auth.Middleware(cfg))

	classifier := loadClassifier(cfg)
	g.service = notification.NewService(cfg, classifier)

	var broadcaster fanout.Broadcaster
	var cacheStore assetcache.Store
	if cfg.Redis.Enabled {
		g.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		broadcaster = fanout.NewRedisBroadcaster(g.redis, cfg.Fanout.Channel)
		cacheStore = assetcache.NewRedisStore(g.redis)
		log.Printf("[BROADCAST] Using Redis channel %s at %s", cfg.Fanout.Channel, cfg.Redis.Addr)
	} else {
		broadcaster = fanout.NewChannelBroadcaster(cfg.Fanout.Channel)
		cacheStore = assetcache.NewMemoryStore()
	}

	g.notifier = fanout.NewNotifier(g.registry, broadcaster)
	g.worker = worker.NewHandler(worker.NewMemoryNotificationStore(), g.notifier, cfg.Defaults)
	g.clicks = worker.NewClickRouter(g.worker.Store(), g.registry, nil)
	g.cache = assetcache.NewManager(cacheStore, assetcache.FetcherFunc(fetchLocal), cfg.Cache.Version)

	// Activation drops stale-version caches and claims open clients
	g.controller = worker.NewController(func(ctx context.Context) error {
		if err := g.cache.Activate(ctx); err != nil {
			return err
		}
		g.registry.ClaimAll()
		return nil
	})

	g.setupRoutes()
	g.setupHistoryRotation()

	return g
}

func loadClassifier(cfg *config.Config) *guardrails.Classifier {
	if cfg.Guardrails.KeywordsFile != "" {
		classifier, err := guardrails.NewClassifierFromFile(cfg.Guardrails.KeywordsFile)
		if err != nil {
			log.Printf("Warning: Failed to load keyword file %s: %v, using built-in keywords", cfg.Guardrails.KeywordsFile, err)
			return guardrails.NewClassifier()
		}
		return classifier
	}
	return guardrails.NewClassifier()
}

// fetchLocal resolves asset keys against the gateway's own HTTP
// surface. The cache layer treats keys as opaque; anything that is not
// a fetchable URL is a miss.
func fetchLocal(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[CACHE] Failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", key, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// loggingMiddleware logs all requests when verbose mode is enabled
func (g *Gateway) loggingMiddleware() echo.MiddlewareFunc {
	return echo.MiddlewareFunc(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Printf("%s %s %d %v", c.Request().Method, c.Request().URL.Path, c.Response().Status, time.Since(start))
			return err
		}
	})
}

// setupRoutes configures the gateway routes
func (g *Gateway) setupRoutes() {
	g.echo.GET("/health", g.health)

	api := g.echo.Group("/api/notifications")
	api.GET("/vapid-public-key", g.getVAPIDPublicKey)
	api.POST("/subscribe", g.subscribe, auth.RequirePermission("notification:subscribe"))
	api.GET("/subscribe", g.getSubscriptions, auth.RequirePermission("notification:read"))
	api.DELETE("/subscribe", g.unsubscribe, auth.RequirePermission("notification:subscribe"))
	api.POST("/subscribe/rotate", g.rotateSubscription, auth.RequirePermission("notification:subscribe"))
	api.GET("/preferences", g.getPreferences)
	api.PUT("/preferences", g.updatePreferences)
	api.POST("/send", g.sendNotification, auth.RequirePermission("notification:send"))
	api.GET("/history", g.getHistory, auth.RequirePermission("notification:read"))
	api.GET("/stream", g.stream)
	api.POST("/push", g.pushEvent)
	api.POST("/click", g.click)

	g.echo.POST("/api/worker/message", g.workerMessage)
}

// setupHistoryRotation schedules the nightly history trim
func (g *Gateway) setupHistoryRotation() {
	g.cron = cron.New()
	_, err := g.cron.AddFunc(g.config.History.RotateSchedule, func() {
		g.service.RotateAllHistory(g.config.History.MaxEntries)
	})
	if err != nil {
		log.Printf("Warning: Invalid history rotation schedule %q: %v", g.config.History.RotateSchedule, err)
	}
}

// Start starts the gateway server on the specified port
func (g *Gateway) Start(port string) error {
	g.cron.Start()
	return g.echo.Start(":" + port)
}

// Shutdown gracefully stops the server and background jobs
func (g *Gateway) Shutdown(ctx context.Context) error {
	stopped := g.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	if g.redis != nil {
		if err := g.redis.Close(); err != nil {
			log.Printf("Failed to close Redis client: %v", err)
		}
	}
	return g.echo.Shutdown(ctx)
}

// GetEcho returns the underlying echo instance for testing
func (g *Gateway) GetEcho() *echo.Echo {
	return g.echo
}

// Service returns the notification service
func (g *Gateway) Service() *notification.Service {
	return g.service
}

// Cache returns the asset cache manager
func (g *Gateway) Cache() *assetcache.Manager {
	return g.cache
}

func (g *Gateway) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
