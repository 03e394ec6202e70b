package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/config"
	"github.com/NeuralTrust/ThreatGate/pkg/dependency_container"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/channel"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/database"
	infraLogger "github.com/NeuralTrust/ThreatGate/pkg/infra/logger"
	_ "github.com/NeuralTrust/ThreatGate/pkg/infra/migrations"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/scheduler"
	"github.com/NeuralTrust/ThreatGate/pkg/server"
	"github.com/NeuralTrust/ThreatGate/pkg/server/middleware"
	"github.com/NeuralTrust/ThreatGate/pkg/server/router"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

//	@title			ThreatGate Admin API
//	@version		1.0
//	@description	Blocklist, security events and attack signatures of the ThreatGate request gateway.
//	@BasePath		/
//	@securityDefinitions.apikey	BearerAuth
//	@in				header
//	@name			Authorization
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverType := getServerType()
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger(serverType)

	if err := config.Load(configPath()); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	db, err := database.NewDB(logger, &database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("failed to close database")
		}
	}()

	container, err := dependency_container.NewContainer(dependency_container.ContainerDI{
		Cfg:            cfg,
		Logger:         logger,
		DB:             db,
		EventsRegistry: event.Registry,
	})
	if err != nil {
		logger.Fatalf("failed to initialize dependencies: %v", err)
	}

	go container.RedisListener.Listen(ctx, channel.ThreatEventsChannel)

	var sched *scheduler.Scheduler
	if serverType != "admin" {
		sched = scheduler.New(logger)
		for _, task := range container.ScheduledTasks(cfg) {
			if err := sched.Register(task); err != nil {
				logger.Fatalf("failed to schedule %s: %v", task.Name, err)
			}
		}
		sched.Start(ctx)
	}

	srv := initializeServer(serverType, cfg, logger, container)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Shutdown(); err != nil {
			logger.WithError(err).Error("error shutting down server")
		}
		cancel()
		if sched != nil {
			sched.Stop()
		}
		container.Close(logger)
	}()
	select {
	case <-done:
		logger.Info("server gracefully stopped")
	case <-time.After(shutdownTimeout):
		logger.Error("shutdown timed out")
		os.Exit(1)
	}
}

func getServerType() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return "proxy"
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config"
}

func initializeServer(
	serverType string,
	cfg *config.Config,
	logger *logrus.Logger,
	c *dependency_container.Container,
) server.Server {
	switch serverType {
	case "admin":
		adminMiddlewares := middleware.NewTransport(
			c.PanicRecoverMiddleware,
			c.AdminAuthMiddleware,
		)
		return server.NewAdminServer(server.AdminServerDI{
			Config: cfg,
			Logger: logger,
			Routers: []router.ServerRouter{
				router.NewAdminRouter(
					adminMiddlewares,
					c.WebSocketMiddleware,
					c.HandlerTransport,
					c.WSHandlerTransport,
					cfg.Server.SwaggerURL,
				),
			},
		})
	default:
		proxyMiddlewares := middleware.NewTransport(
			c.PanicRecoverMiddleware,
			c.ThreatGuardMiddleware,
		)
		return server.NewProxyServer(server.ProxyServerDI{
			Config: cfg,
			Logger: logger,
			Routers: []router.ServerRouter{
				router.NewProxyRouter(proxyMiddlewares, c.HandlerTransport),
			},
		})
	}
}
