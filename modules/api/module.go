package api

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/khalidAdell/quick-task/modules/identity"
	"github.com/khalidAdell/quick-task/modules/live"
	"github.com/khalidAdell/quick-task/modules/notification"
	"github.com/khalidAdell/quick-task/modules/task"
)

// Config configures the HTTP surface.
type Config struct {
	Addr string
	// BidRateLimit is the number of bid submissions allowed per user per minute.
	// Zero disables the limiter.
	BidRateLimit  int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// APIModule exposes the marketplace over REST and websockets.
type APIModule struct {
	cfg              Config
	app              *fiber.App
	identityPort     identity.IdentityPort
	taskPort         task.TaskPort
	notificationPort notification.NotificationPort
	hub              *live.Hub
	watcher          *task.Watcher
	limiterStorage   *redis.Storage
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg Config) *APIModule {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	return &APIModule{cfg: cfg}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"identity", "task", "notification"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "identity":
		m.identityPort = identity.NewIdentityAdapter(container)
	case "task":
		m.taskPort = task.NewTaskAdapter(container)
	case "notification":
		m.notificationPort = notification.NewNotificationAdapter(container)
	}
}

// SetLive sets the websocket hub and snapshot watcher (called from main.go).
func (m *APIModule) SetLive(hub *live.Hub, watcher *task.Watcher) {
	m.hub = hub
	m.watcher = watcher
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.identityPort == nil {
		return fmt.Errorf("identity adapter dependency not set")
	}
	if m.taskPort == nil {
		return fmt.Errorf("task adapter dependency not set")
	}
	if m.notificationPort == nil {
		return fmt.Errorf("notification adapter dependency not set")
	}
	if m.hub == nil || m.watcher == nil {
		return fmt.Errorf("live dependencies not set")
	}

	m.app = m.newApp(m.bidLimiterStorage())

	go func() {
		if err := m.app.Listen(m.cfg.Addr); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on %s", m.cfg.Addr)
	return nil
}

// newApp builds the Fiber app with middleware and routes. storage backs the
// bid limiter; nil keeps its counters in memory.
func (m *APIModule) newApp(storage fiber.Storage) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		Next: func(c *fiber.Ctx) bool {
			return c.Get("Upgrade") == "websocket"
		},
	}))
	app.Use(cors.New())

	m.setupRoutes(app, m.bidLimiter(storage))
	return app
}

// bidLimiter throttles bid submissions per caller.
func (m *APIModule) bidLimiter(storage fiber.Storage) fiber.Handler {
	if m.cfg.BidRateLimit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	cfg := limiter.Config{
		Max:        m.cfg.BidRateLimit,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if p := principalFrom(c); !p.Anonymous() {
				return "bid:" + p.ID
			}
			return "bid:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many bids, try again in a minute",
			})
		},
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return limiter.New(cfg)
}

// bidLimiterStorage returns Redis storage for the bid limiter so limits are
// shared across instances. redis.New panics on an unreachable server, so the
// address is probed first and the limiter falls back to memory.
func (m *APIModule) bidLimiterStorage() fiber.Storage {
	if m.cfg.BidRateLimit <= 0 || m.cfg.RedisAddr == "" {
		return nil
	}
	conn, err := net.DialTimeout("tcp", m.cfg.RedisAddr, 2*time.Second)
	if err != nil {
		log.Printf("[api] Warning: Redis unavailable at %s, bid limiter uses memory: %v", m.cfg.RedisAddr, err)
		return nil
	}
	_ = conn.Close()

	host, port := splitHostPort(m.cfg.RedisAddr)
	m.limiterStorage = redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: m.cfg.RedisPassword,
		Database: m.cfg.RedisDB,
		PoolSize: 10,
	})
	log.Printf("[api] Bid limiter backed by Redis at %s", m.cfg.RedisAddr)
	return m.limiterStorage
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	err := m.app.Shutdown()
	if m.limiterStorage != nil {
		if cerr := m.limiterStorage.Close(); cerr != nil {
			log.Printf("[api] Error closing limiter storage: %v", cerr)
		}
	}
	return err
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"addr":          m.cfg.Addr,
		"bid_limit":     m.cfg.BidRateLimit,
		"redis_limiter": m.limiterStorage != nil,
	}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	if m.watcher != nil {
		details["task_subscriptions"] = m.watcher.Count()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}
