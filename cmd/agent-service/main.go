package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/daechan-jo/auto-store-services-coupang/internal/agent"
	apistorage "github.com/daechan-jo/auto-store-services-coupang/internal/api/storage"
	"github.com/daechan-jo/auto-store-services-coupang/internal/browser"
	"github.com/daechan-jo/auto-store-services-coupang/internal/config"
	"github.com/daechan-jo/auto-store-services-coupang/internal/control"
	"github.com/daechan-jo/auto-store-services-coupang/internal/coupang"
	"github.com/daechan-jo/auto-store-services-coupang/internal/dispatch"
	"github.com/daechan-jo/auto-store-services-coupang/internal/notify"
	"github.com/daechan-jo/auto-store-services-coupang/internal/report"
	"github.com/daechan-jo/auto-store-services-coupang/internal/storage"
	"github.com/daechan-jo/auto-store-services-coupang/shared/logger"
	"github.com/daechan-jo/auto-store-services-coupang/shared/postgresql"
	"github.com/daechan-jo/auto-store-services-coupang/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("AGENT_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/agent-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateAgentConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting agent service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("store", cfg.Agent.Store),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	consumer := buildConsumer(cfg, dbClient, rabbitClient, appLogger.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Run(ctx)
	}()

	appLogger.Info("Agent service is running",
		slog.String("queue", cfg.RabbitMQ.Queue.Name),
		slog.Int("prefetch", cfg.RabbitMQ.Consumer.PrefetchCount),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down agent...")
		cancel()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("consumer stopped: %w", err)
		}
		return nil
	}

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			appLogger.Error("Consumer shutdown error",
				slog.Any("error", err),
			)
		}
	case <-time.After(cfg.Agent.ShutdownTimeout):
		appLogger.Warn("Shutdown timeout exceeded, in-flight jobs abandoned")
	}

	appLogger.Info("Agent shutdown complete")
	return nil
}

// buildConsumer wires the marketplace client, browser manager, storage,
// orchestrators, and dispatcher into a ready-to-run consumer.
func buildConsumer(cfg *config.Config, dbClient *postgresql.Client, rabbitClient *rabbitmq.Client, log *slog.Logger) *agent.Consumer {
	signer := coupang.NewSigner(cfg.Coupang.AccessKey, cfg.Coupang.SecretKey)
	apiClient := coupang.NewClient(coupang.ClientConfig{
		Host:           cfg.Coupang.Host,
		VendorID:       cfg.Coupang.VendorID,
		MaxPerPage:     cfg.Coupang.MaxPerPage,
		StatusFilter:   cfg.Coupang.StatusFilter,
		RetryAttempts:  cfg.Coupang.RetryAttempts,
		RetryDelay:     cfg.Coupang.RetryDelay,
		PageThrottle:   cfg.Coupang.PageThrottle,
		RequestTimeout: cfg.Coupang.RequestTimeout,
	}, signer, log)

	manager := browser.NewManager(browser.Config{
		LoginURL:     cfg.Wing.LoginURL,
		BaseURL:      cfg.Wing.BaseURL,
		Username:     cfg.Wing.Username,
		Password:     cfg.Wing.Password,
		UserAgent:    cfg.Wing.UserAgent,
		Headless:     cfg.Wing.Headless,
		SelectorWait: cfg.Wing.SelectorWait,
		ScrollStep:   cfg.Wing.ScrollStep,
		ScrollDelay:  cfg.Wing.ScrollDelay,
	}, log)

	store := storage.NewStorage(dbClient.GetDB(), log)
	ledger := apistorage.NewStorage(dbClient)

	reports := report.NewWriter(cfg.Control.ReportDir)
	notifier := notify.NewNotifier(rabbitClient, cfg.RabbitMQ.Notifications.Name, log)

	price := control.NewPriceControl(apiClient, store, reports, notifier,
		cfg.Control.PriceDelay, cfg.Control.NotifyChannel, log)
	shipping := control.NewShippingCostControl(apiClient,
		cfg.Control.ReturnCharge, cfg.Control.ShippingDelay, log)

	dispatcher := dispatch.NewDispatcher(log)
	registry := agent.NewRegistry(
		agent.ManagerSource{Manager: manager},
		apiClient, store, price, shipping,
		cfg.Wing.Courier, cfg.Wing.ConfirmNote, log,
	)
	registry.Install(dispatcher)

	return agent.NewConsumer(rabbitClient, dispatcher, ledger,
		cfg.Agent.Store, cfg.RabbitMQ.Consumer.PrefetchCount, log)
}

func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		VHost:    cfg.VHost,
		Exchange: rabbitmq.ExchangeConfig{
			Name:       cfg.Exchange.Name,
			Type:       cfg.Exchange.Type,
			Durable:    cfg.Exchange.Durable,
			AutoDelete: cfg.Exchange.AutoDelete,
		},
		Notifications: rabbitmq.ExchangeConfig{
			Name:       cfg.Notifications.Name,
			Type:       cfg.Notifications.Type,
			Durable:    cfg.Notifications.Durable,
			AutoDelete: cfg.Notifications.AutoDelete,
		},
		QueueName:         cfg.Queue.Name,
		QueueDurable:      cfg.Queue.Durable,
		QueueAutoDelete:   cfg.Queue.AutoDelete,
		QueueExclusive:    cfg.Queue.Exclusive,
		RoutingKey:        cfg.RoutingKey,
		RetryAttempts:     cfg.Connection.RetryAttempts,
		RetryInterval:     cfg.Connection.RetryInterval,
		Heartbeat:         cfg.Connection.Heartbeat,
		ConnectionTimeout: cfg.Connection.ConnectionTimeout,
		PublishRetries:    cfg.Publish.RetryAttempts,
		PublishRetryDelay: cfg.Publish.RetryInterval,
	}, logger)
}
