package main

import (
	"context"
	"log/slog"

	memory_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/config"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-wallet/pkg/mysql"
	"github.com/JoeShih716/go-mem-wallet/pkg/wal"
)

// newLedger 依設定建立帳本引擎，回傳的 close 函式負責釋放引擎資源
func newLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (usecase.Ledger, func(), error) {
	if cfg.Ledger.Engine == config.EngineMySQL {
		return newMySQLLedger(ctx, cfg, logger)
	}

	var (
		opts    []memory_adapter.Option
		walFile *wal.WAL
	)
	closeWAL := func() {
		if walFile == nil {
			return
		}
		if err := walFile.Close(); err != nil {
			logger.Error("close wal failed", "error", err)
		}
	}
	if cfg.Ledger.WALPath != "" {
		var err error
		walFile, err = wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, memory_adapter.WithJournal(walFile))
	}

	store := memory_adapter.NewAccountStore()
	switch cfg.Ledger.Engine {
	case config.EngineLMAX:
		ledger, err := memory_adapter.NewLMAXLedger(store, opts...)
		if err != nil {
			closeWAL()
			return nil, nil, err
		}
		// 引擎的生命週期獨立於 signal ctx，等 server 都停止後才結束
		engineCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		ledger.Start(engineCtx)
		logger.Info("ledger ready", "engine", cfg.Ledger.Engine, "accounts", store.Len(), "wal", cfg.Ledger.WALPath)
		return ledger, func() {
			cancel()
			<-ledger.Done()
			closeWAL()
		}, nil
	default:
		ledger, err := memory_adapter.NewMutexLedger(store, opts...)
		if err != nil {
			closeWAL()
			return nil, nil, err
		}
		logger.Info("ledger ready", "engine", cfg.Ledger.Engine, "accounts", store.Len(), "wal", cfg.Ledger.WALPath)
		return ledger, closeWAL, nil
	}
}

func newMySQLLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (usecase.Ledger, func(), error) {
	dbClient, err := mysql.NewClient(ctx, cfg.MySQL)
	if err != nil {
		return nil, nil, err
	}
	ledger := mysql_adapter.NewMySQLLedger(dbClient)
	if err := ledger.Migrate(ctx); err != nil {
		_ = dbClient.Close()
		return nil, nil, err
	}
	logger.Info("ledger ready", "engine", cfg.Ledger.Engine, "host", cfg.MySQL.Host, "db", cfg.MySQL.DBName)
	return ledger, func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("close mysql failed", "error", err)
		}
	}, nil
}
