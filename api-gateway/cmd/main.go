package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eaglebank/wallet/api-gateway/internal/proxy"
	"github.com/eaglebank/wallet/shared/config"
	"github.com/eaglebank/wallet/shared/logging"
	"github.com/eaglebank/wallet/shared/middleware"
	"github.com/eaglebank/wallet/shared/server"
	"github.com/eaglebank/wallet/shared/telemetry"
)

const serviceName = "api-gateway"

type Config struct {
	config.Common
	UserServiceURL        string
	AccountServiceURL     string
	TransactionServiceURL string
	TransferServiceURL    string
	UpstreamTimeout       time.Duration
}

func loadConfig() Config {
	config.Load()
	return Config{
		Common:                config.LoadCommon(serviceName, "8080"),
		UserServiceURL:        config.GetURLEnv("USER_SERVICE_URL", "http://localhost:8082"),
		AccountServiceURL:     config.GetURLEnv("ACCOUNT_SERVICE_URL", "http://localhost:8083"),
		TransactionServiceURL: config.GetURLEnv("TRANSACTION_SERVICE_URL", "http://localhost:8084"),
		TransferServiceURL:    config.GetURLEnv("TRANSFER_SERVICE_URL", "http://localhost:8085"),
		UpstreamTimeout:       config.GetDurationEnv("UPSTREAM_TIMEOUT", 15*time.Second),
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

	middleware.MustInitJWTSecret()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(serviceName)
	defer shutdownTracing(context.Background())

	upstream := func(name, url string) gin.HandlerFunc {
		return proxy.New(proxy.Upstream{Name: name, BaseURL: url, Timeout: cfg.UpstreamTimeout}, logger).Handler()
	}
	users := upstream("user-service", cfg.UserServiceURL)
	accounts := upstream("account-service", cfg.AccountServiceURL)
	transactions := upstream("transaction-service", cfg.TransactionServiceURL)
	transfers := upstream("transfer-service", cfg.TransferServiceURL)

	router := server.NewRouter(serviceName, logger)

	// Tokens are checked here and again by each service.
	v1 := router.Group("/v1", middleware.AuthMiddleware())
	{
		v1.POST("/users", users)
		v1.GET("/users/:userId", users)

		v1.POST("/accounts", accounts)
		v1.GET("/accounts", accounts)
		v1.GET("/accounts/:accountId", accounts)
		v1.POST("/accounts/:accountId/deposit", accounts)
		v1.POST("/accounts/:accountId/withdraw", accounts)

		v1.GET("/accounts/:accountId/transactions", transactions)
		v1.GET("/accounts/:accountId/transactions/:transactionId", transactions)

		v1.POST("/transfers", transfers)
	}

	if err := server.Run(ctx, ":"+cfg.Port, router, cfg.ShutdownWait, logger); err != nil {
		logger.Fatal("api gateway stopped", zap.Error(err))
	}
}
