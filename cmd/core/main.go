package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	grpc_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/in/http"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/currency"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/security"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/config"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

const defaultConfigPath = "config/config.yaml"

var (
	configPath string
	engine     string
)

var rootCmd = &cobra.Command{
	Use:   "core",
	Short: "In-memory wallet ledger server (HTTP + gRPC)",
	Long: `core 啟動錢包帳本服務:

  HTTP  /api/users/register, /api/payments/{fund,pay,bal,stmt}
  gRPC  ledger.v1.LedgerService

Examples:
  core                                  # config/config.yaml + 環境變數
  core --engine lmax                    # 單一寫入者引擎
  core --config /etc/wallet/config.yaml`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		// 沒有指定 --config 且預設檔不存在時只用環境變數
		if !cmd.Flags().Changed("config") {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				path = ""
			}
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("engine") {
			cfg.Ledger.Engine = engine
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to the yaml config file")
	rootCmd.Flags().StringVar(&engine, "engine", "", "ledger engine: mutex | lmax | mysql (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// 2. 帳本引擎
	ledger, closeLedger, err := newLedger(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init %s ledger: %w", cfg.Ledger.Engine, err)
	}
	defer closeLedger()

	// 3. UseCase
	converter := currency.NewExchangeRateConverter(currency.Config{
		BaseCurrency:  cfg.Exchange.BaseCurrency,
		APIURL:        cfg.Exchange.APIURL,
		CacheDuration: cfg.Exchange.CacheDuration,
		Timeout:       cfg.Exchange.Timeout,
	})
	hasher := security.NewBcryptHasher(cfg.Security.SaltRounds)
	coreUseCase := usecase.NewCoreUseCase(ledger, hasher, converter, cfg.Exchange.BaseCurrency)

	// 4. Driving Adapters
	app := http_adapter.NewApp(coreUseCase, logger)
	grpcServer := grpc_adapter.NewServer(coreUseCase, logger)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPC.Addr, err)
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("starting grpc server", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("starting http server", "addr", cfg.HTTP.Addr, "engine", cfg.Ledger.Engine)
		if err := app.Listen(cfg.HTTP.Addr); err != nil {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Graceful Shutdown
	select {
	case <-ctx.Done():
		logger.Info("shutting down servers")
	case err = <-serveErr:
		logger.Error("server stopped unexpectedly", "error", err)
	}

	if shutdownErr := app.ShutdownWithTimeout(10 * time.Second); shutdownErr != nil {
		logger.Error("http shutdown failed", "error", shutdownErr)
	}
	grpcServer.GracefulStop()
	logger.Info("server exited")
	return err
}
