package main

import (
	"context"
	"fmt"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/khalidAdell/quick-task/config"
	"github.com/khalidAdell/quick-task/modules/api"
	"github.com/khalidAdell/quick-task/modules/identity"
	"github.com/khalidAdell/quick-task/modules/live"
	"github.com/khalidAdell/quick-task/modules/notification"
	"github.com/khalidAdell/quick-task/modules/payment"
	"github.com/khalidAdell/quick-task/modules/stream"
	"github.com/khalidAdell/quick-task/modules/task"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Driver != "memory" {
		if err := os.MkdirAll(cfg.DB.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return cfg, nil
}

func taskConfig(cfg *config.Config) task.Config {
	return task.Config{
		Driver:        cfg.DB.Driver,
		SQLiteDSN:     cfg.DB.SQLiteDSN("tasks"),
		DatabaseURL:   cfg.DB.URL,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		CacheTTL:      cfg.Redis.CacheTTL,
		Retry: task.RetryConfig{
			MaxAttempts:  cfg.Lifecycle.MaxAttempts,
			InitialDelay: cfg.Lifecycle.InitialDelay,
			MaxDelay:     cfg.Lifecycle.MaxDelay,
		},
		Categories: cfg.Categories,
		Currency:   cfg.Payment.Currency,
	}
}

func runServe() error {
	log.Println("=== quick-task - Task Bidding & Assignment ===")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	var gateway payment.Gateway
	if cfg.Payment.GatewayURL != "" {
		gateway = payment.NewHTTPGateway(cfg.Payment.GatewayURL, cfg.Payment.Token, cfg.Payment.Timeout)
	}

	// Create modules
	identityModule := identity.NewModule(cfg.DB.SQLiteDSN("identity"), identity.JWTConfig{
		SecretKey:            cfg.JWT.SecretKey,
		AccessTokenDuration:  cfg.JWT.AccessTTL,
		RefreshTokenDuration: cfg.JWT.RefreshTTL,
		Issuer:               cfg.JWT.Issuer,
	})
	notificationModule := notification.NewModule(cfg.DB.SQLiteDSN("notifications"))
	paymentModule := payment.NewModule(cfg.DB.SQLiteDSN("payments"), gateway)
	taskModule := task.NewModule(taskConfig(cfg))
	liveModule := live.NewModule()
	apiModule := api.NewModule(api.Config{
		Addr:          cfg.HTTPAddr,
		BidRateLimit:  cfg.BidRateLimit,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})

	// The hub and watcher are not exposed via ServiceContainer, so the API
	// module receives them directly.
	apiModule.SetLive(liveModule.Hub(), liveModule.Watcher())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - identity, notification, payment: leaf service providers
	// - task: lifecycle core (depends on notification and payment)
	// - live: event consumer feeding websocket subscribers
	// - stream: optional JetStream forwarder
	// - api: driving adapter (depends on identity, task, notification)
	app.Register(identityModule)
	app.Register(notificationModule)
	app.Register(paymentModule)
	app.Register(taskModule)
	app.Register(liveModule)
	if cfg.NATSURL != "" {
		app.Register(stream.NewModule(cfg.NATSURL))
	}
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
	return nil
}

func printStartupInfo(cfg *config.Config) {
	gatewayMode := "sandbox"
	if cfg.Payment.GatewayURL != "" {
		gatewayMode = cfg.Payment.GatewayURL
	}
	redisMode := "disabled"
	if cfg.Redis.Addr != "" {
		redisMode = cfg.Redis.Addr
	}
	streamMode := "disabled"
	if cfg.NATSURL != "" {
		streamMode = cfg.NATSURL
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Configuration:")
	log.Printf("  - Task store: %s", cfg.DB.Driver)
	log.Printf("  - Redis cache / bid limiter: %s", redisMode)
	log.Printf("  - Payment gateway: %s (%s)", gatewayMode, cfg.Payment.Currency)
	log.Printf("  - JetStream forwarding: %s", streamMode)
	log.Printf("  - Categories: %v", cfg.Categories)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost%s):", cfg.HTTPAddr)
	log.Println("  POST   /api/v1/auth/register|login|refresh")
	log.Println("  GET    /api/v1/profile, PUT /api/v1/profile, GET /api/v1/profile/dashboard")
	log.Println("  GET    /api/v1/tasks                       - List/filter tasks")
	log.Println("  POST   /api/v1/tasks                       - Post a task")
	log.Println("  GET    /api/v1/tasks/:id                   - Task details")
	log.Println("  PUT    /api/v1/tasks/:id                   - Edit an open task")
	log.Println("  DELETE /api/v1/tasks/:id                   - Delete a task")
	log.Println("  POST   /api/v1/tasks/:id/bids              - Submit a bid")
	log.Println("  PUT    /api/v1/tasks/:id/bids/:bidId       - Edit a bid")
	log.Println("  DELETE /api/v1/tasks/:id/bids/:bidId       - Withdraw a bid")
	log.Println("  POST   /api/v1/tasks/:id/bids/:bidId/select - Select the winning bid")
	log.Println("  POST   /api/v1/tasks/:id/complete          - Mark work complete")
	log.Println("  POST   /api/v1/tasks/:id/payment           - Release payment")
	log.Println("  GET    /api/v1/notifications, POST /api/v1/notifications/:id/read")
	log.Println("")
	log.Println("WebSocket Endpoints:")
	log.Println("  /ws/tasks/:id               - Live task snapshots")
	log.Println("  /ws/notifications?token=... - Live notifications")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
