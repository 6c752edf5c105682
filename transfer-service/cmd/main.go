package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/wallet/shared/config"
	"github.com/eaglebank/wallet/shared/httpclient"
	"github.com/eaglebank/wallet/shared/journal"
	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/middleware"
	redisClient "github.com/eaglebank/wallet/shared/redis"
	"github.com/eaglebank/wallet/shared/server"
	"github.com/eaglebank/wallet/shared/telemetry"
	"github.com/eaglebank/wallet/transfer-service/internal/client"
	"github.com/eaglebank/wallet/transfer-service/internal/command"
	"github.com/eaglebank/wallet/transfer-service/internal/handler"
	"github.com/eaglebank/wallet/transfer-service/internal/repository"
	"github.com/eaglebank/wallet/transfer-service/internal/saga"
)

const serviceName = "transfer-service"

type Config struct {
	config.Common
	UserURL          string
	AccountURL       string
	TransactionURL   string
	ResolverTimeout  time.Duration
	LedgerTimeout    time.Duration
	LedgerAttempts   int
	JournalTimeout   time.Duration
	JournalAttempts  int
	InternalToken    string
	SagaTTL          time.Duration
	LockExpiry       time.Duration
	RecoveryInterval time.Duration
	RecoveryIdle     time.Duration
}

func loadConfig() Config {
	config.Load()
	return Config{
		Common:           config.LoadCommon(serviceName, "8085"),
		UserURL:          config.GetURLEnv("USER_SERVICE_URL", "http://localhost:8082"),
		AccountURL:       config.GetURLEnv("ACCOUNT_SERVICE_URL", "http://localhost:8083"),
		TransactionURL:   config.GetURLEnv("TRANSACTION_SERVICE_URL", "http://localhost:8084"),
		ResolverTimeout:  config.GetDurationEnv("RESOLVER_TIMEOUT", 3*time.Second),
		LedgerTimeout:    config.GetDurationEnv("LEDGER_TIMEOUT", 5*time.Second),
		LedgerAttempts:   config.GetIntEnv("LEDGER_MAX_ATTEMPTS", 3),
		JournalTimeout:   config.GetDurationEnv("JOURNAL_TIMEOUT", 2*time.Second),
		JournalAttempts:  config.GetIntEnv("JOURNAL_MAX_ATTEMPTS", 3),
		InternalToken:    config.GetEnv("INTERNAL_TOKEN", ""),
		SagaTTL:          config.GetDurationEnv("SAGA_RECORD_TTL", 72*time.Hour),
		LockExpiry:       config.GetDurationEnv("TRANSFER_LOCK_EXPIRY", 30*time.Second),
		RecoveryInterval: config.GetDurationEnv("SAGA_RECOVERY_INTERVAL", 30*time.Second),
		RecoveryIdle:     config.GetDurationEnv("SAGA_RECOVERY_IDLE", 2*time.Minute),
	}
}

func main() {
	cfg := loadConfig()

	logger, err := logging.New(serviceName, cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("transfer service stopped", zap.Error(err))
	}
}

func run(cfg Config, logger *zap.Logger) error {
	middleware.MustInitJWTSecret()
	cfg.InternalToken = middleware.MustInternalToken(cfg.InternalToken, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(serviceName)
	defer shutdownTracing(context.Background())

	// Redis: saga records, transfer locks, journal retry queue
	redis, err := redisClient.NewClient(ctx, redisClient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
	if err != nil {
		return err
	}
	defer redis.Close()

	upstream := func(name, url string, timeout time.Duration) *httpclient.Client {
		return httpclient.New(httpclient.Config{
			Name:          name,
			BaseURL:       url,
			Timeout:       timeout,
			InternalToken: cfg.InternalToken,
		}, logger)
	}
	ledgerClient := client.NewLedgerClient(upstream("account-service", cfg.AccountURL, cfg.LedgerTimeout))

	policy := journal.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.JournalAttempts
	policy.AttemptTimeout = cfg.JournalTimeout
	recorder := journal.NewRecorder(
		journal.NewHTTPAppender(upstream("transaction-service", cfg.TransactionURL, cfg.JournalTimeout)),
		journal.NewStreamQueue(redis.Client),
		policy,
		logger,
	)

	ledgerPolicy := journal.DefaultRetryPolicy()
	ledgerPolicy.MaxAttempts = cfg.LedgerAttempts
	ledgerPolicy.AttemptTimeout = cfg.LedgerTimeout

	coordinator := saga.NewCoordinator(saga.Dependencies{
		Resolver:    client.NewRecipientClient(upstream("user-service", cfg.UserURL, cfg.ResolverTimeout)),
		Ledger:      ledgerClient,
		Recorder:    recorder,
		Store:       repository.NewSagaStateRepository(redis.Client, cfg.SagaTTL),
		Locker:      repository.NewTransferLocker(redis.Client, cfg.LockExpiry, logger),
		LedgerRetry: ledgerPolicy,
	}, logger)
	recovery := coordinator.RecoveryLoop(saga.RecoveryConfig{
		Interval: cfg.RecoveryInterval,
		Idle:     cfg.RecoveryIdle,
	})

	transferHandler := handler.NewTransferHandler(command.NewTransferCommandService(ledgerClient, coordinator))

	router := server.NewRouter(serviceName, logger)
	v1 := router.Group("/v1/transfers", middleware.AuthMiddleware())
	{
		v1.POST("", transferHandler.CreateTransfer)
	}

	return server.Run(ctx, ":"+cfg.Port, router, cfg.ShutdownWait, logger, recovery)
}
