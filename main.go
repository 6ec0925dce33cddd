package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"notification-service/internal/archive"
	"notification-service/internal/config"
	"notification-service/internal/db"
	grpcserver "notification-service/internal/grpc"
	"notification-service/internal/handlers"
	"notification-service/internal/lock"
	"notification-service/internal/middleware"
	"notification-service/internal/observability"
	"notification-service/internal/rabbitmq"
	"notification-service/internal/repositories"
	"notification-service/internal/scheduler"
	"notification-service/internal/service"
	"notification-service/internal/telemetry"
	"notification-service/internal/ws"
)

const serviceName = "notification-service"

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: "Real-time message delivery and notifications",
		Commands: []*cli.Command{
			serverCmd(),
			migrateCmd(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("exit", "error", err)
		os.Exit(1)
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema and exit",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
			database, err := db.Connect(cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer database.Close()
			return db.Migrate(database, logger)
		},
	}
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP, WebSocket and gRPC servers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply the schema before serving",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, c.Bool("migrate"))
		},
	}
}

// jobRunner is a scheduler that also drives its own poll loop.
type jobRunner interface {
	archive.Scheduler
	Run(ctx context.Context) error
}

func runServer(ctx context.Context, cfg config.Config, migrate bool) error {
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	if migrate {
		if err := db.Migrate(database, logger); err != nil {
			return err
		}
	}

	locker, jobs, redisClient := coordination(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	logger.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "reason", rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, "audit.notifications", serviceName, cfg.Environment, logger)

	hub := ws.NewHub(logger)
	deps := service.LifecycleDeps{
		Scheduler: jobs,
		Locker:    locker,
		Tx:        db.NewTransactor(database),
		Retention: cfg.ArchiveRetention,
		Logger:    logger,
	}
	subscriptions := service.NewSubscriptionService(repositories.NewSubscriptionRepo(database), hub, deps)
	broadcasts := service.NewBroadcastService(repositories.NewBroadcastRepo(database), hub, deps)
	roles := service.NewRoleService(repositories.NewRoleRepo(database), deps)
	permissions := service.NewPermissionService(repositories.NewPermissionRepo(database), deps)

	router := newRouter(cfg, logger, hub, audit, subscriptions, broadcasts, roles, permissions)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	checks := map[string]grpcserver.Check{
		"postgres": func(ctx context.Context) error { return database.PingContext(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	grpcSrv := grpcserver.NewServer(checks, 15*time.Second, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		hub.Close()
		return err
	})
	g.Go(func() error {
		return grpcSrv.ListenAndServe(gctx, net.JoinHostPort("", cfg.GRPCPort))
	})
	g.Go(func() error {
		return jobs.Run(gctx)
	})

	err = g.Wait()
	logger.Info("shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// coordination picks the cluster-wide Redis lock and scheduler when Redis is
// configured, and process-local ones otherwise.
func coordination(cfg config.Config, logger *slog.Logger) (archive.Locker, jobRunner, redis.UniversalClient) {
	if cfg.RedisAddr == "" {
		logger.Warn("redis not configured, locks and purge jobs are process-local")
		return lock.NewLocal(cfg.LockWait), scheduler.NewMemory(cfg.SchedulerPollInterval, logger), nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	locker := lock.NewRedis(client, lock.RedisConfig{
		Prefix: "notification:lock:",
		TTL:    cfg.LockTTL,
		Wait:   cfg.LockWait,
		Logger: logger,
	})
	jobs := scheduler.NewRedis(client, scheduler.RedisConfig{
		Key:          "notification:purge-jobs",
		PollInterval: cfg.SchedulerPollInterval,
		Lease:        cfg.SchedulerLease,
		Logger:       logger,
	})
	return locker, jobs, client
}

func newRouter(
	cfg config.Config,
	logger *slog.Logger,
	hub *ws.Hub,
	audit *telemetry.AuditEmitter,
	subscriptions handlers.SubscriptionService,
	broadcasts handlers.BroadcastService,
	roles handlers.RoleService,
	permissions handlers.PermissionService,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var resolver middleware.IdentityResolver = middleware.HeaderResolver{}
	if cfg.JWTSecret != "" {
		resolver = middleware.NewJWTResolver(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET empty, trusting X-User-ID header")
	}

	api := router.Group("/", middleware.AuthMiddleware(resolver))
	api.GET("/ws", ws.NewHandler(hub, logger).Handle)
	api.GET("/presence/broadcast", handlers.PresenceHandler(hub))
	handlers.NewSubscriptionHandler(subscriptions, audit).Register(api)
	handlers.NewBroadcastHandler(broadcasts, audit).Register(api)
	handlers.NewAccessHandler(roles, permissions, audit).Register(api)
	handlers.RegisterDebugRoutes(api, audit, hub, cfg.DebugRoutes)

	return router
}
