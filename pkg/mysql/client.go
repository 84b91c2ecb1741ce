package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQueryThreshold 超過此時間的 SQL 以 warn 記錄
const slowQueryThreshold = 200 * time.Millisecond

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立並回傳一個新的 MySQL 客戶端實例 (GORM)
//
// 連線失敗時每隔 RetryInterval 重試，最多 ConnectRetries 次；ctx 取消時立即放棄。
//
// 參數:
//
//	ctx: 控制重試等待
//	cfg: Config - MySQL 連線配置 (未設定的欄位使用 WithDefaults 的預設值)
//
// 回傳值:
//
//	*Client: 封裝後的 MySQL 客戶端
//	error: 若重試後仍連線失敗則回傳錯誤
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	gormConfig := &gorm.Config{
		// 帳務操作都自己開 Transaction，單句寫入不需要額外包一層
		SkipDefaultTransaction: true,
		// 讓 duplicate key 轉成 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         newLogger(cfg.LogLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		if db, err = open(ctx, cfg, gormConfig); err == nil {
			break
		}
		if attempt == cfg.ConnectRetries {
			break
		}
		slog.Warn("mysql connect failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.ConnectRetries,
			"retry_in", cfg.RetryInterval,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("mysql connect canceled: %w", ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", cfg.ConnectRetries, err)
	}
	return &Client{db: db}, nil
}

// open 開啟連線、設定連線池並 Ping 一次
func open(ctx context.Context, cfg Config, gormConfig *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// WithContext 回傳綁定 ctx 的 session
func (c *Client) WithContext(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

// Transaction 在單一 DB Transaction 中執行 fn，fn 回傳錯誤時 Rollback
func (c *Client) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.db.WithContext(ctx).Transaction(fn)
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLogger GORM 的輸出導向 slog 預設 handler
func newLogger(level string) logger.Interface {
	writer := slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn)
	return logger.New(writer, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  parseLogLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Error // 預設只記錄錯誤
	}
}
