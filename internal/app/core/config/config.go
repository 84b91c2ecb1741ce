package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-mem-wallet/pkg/mysql"
)

// 帳本引擎
const (
	EngineMutex = "mutex" // 記憶體 + 帳戶鎖 (預設)
	EngineLMAX  = "lmax"  // 記憶體 + 單一寫入者
	EngineMySQL = "mysql" // MySQL 悲觀鎖
)

type Config struct {
	HTTP     ServerConfig   `yaml:"http"`
	GRPC     ServerConfig   `yaml:"grpc"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Security SecurityConfig `yaml:"security"`
	Exchange ExchangeConfig `yaml:"exchange"`
	MySQL    mysql.Config   `yaml:"mysql"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LedgerConfig struct {
	Engine  string `yaml:"engine"`
	WALPath string `yaml:"wal_path"` // 空字串代表不寫 WAL
}

type SecurityConfig struct {
	SaltRounds int `yaml:"salt_rounds"` // bcrypt cost
}

type ExchangeConfig struct {
	BaseCurrency  string        `yaml:"base_currency"`
	APIURL        string        `yaml:"api_url"`
	CacheDuration time.Duration `yaml:"cache_duration"`
	Timeout       time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug / info / warn / error
}

// Load 載入設定
//
// 優先順序: 環境變數 (含 .env) > yaml 檔 > 預設值
//
// 參數:
//
//	path: yaml 檔路徑，空字串代表只用環境變數與預設值
//
// 回傳:
//
//	*Config: 設定
//	error: 檔案讀取 / 解析失敗或設定值不合法
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env 不存在是正常的 (例如在容器中只用系統環境變數)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PORT"); ok {
		c.HTTP.Addr = listenAddr(v)
	}
	if v, ok := os.LookupEnv("GRPC_PORT"); ok {
		c.GRPC.Addr = listenAddr(v)
	}
	if v, ok := os.LookupEnv("SALT_ROUNDS"); ok {
		rounds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SALT_ROUNDS %q: %w", v, err)
		}
		c.Security.SaltRounds = rounds
	}
	if v, ok := os.LookupEnv("BASE_CURRENCY"); ok {
		c.Exchange.BaseCurrency = v
	}
	if v, ok := os.LookupEnv("EXCHANGE_API_URL"); ok {
		c.Exchange.APIURL = v
	}
	if v, ok := os.LookupEnv("EXCHANGE_CACHE_DURATION"); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid EXCHANGE_CACHE_DURATION %q: %w", v, err)
		}
		c.Exchange.CacheDuration = time.Duration(ms) * time.Millisecond
	}
	if v, ok := os.LookupEnv("LEDGER_ENGINE"); ok {
		c.Ledger.Engine = v
	}
	if v, ok := os.LookupEnv("WAL_PATH"); ok {
		c.Ledger.WALPath = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// applyDefaults 補全 yaml 與環境變數都沒有設定的值
func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":3000"
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.Ledger.Engine == "" {
		c.Ledger.Engine = EngineMutex
	}
	if c.Security.SaltRounds == 0 {
		c.Security.SaltRounds = 10
	}
	if c.Exchange.BaseCurrency == "" {
		c.Exchange.BaseCurrency = "INR"
	}
	c.Exchange.BaseCurrency = strings.ToUpper(c.Exchange.BaseCurrency)
	if c.Exchange.APIURL == "" {
		c.Exchange.APIURL = "https://open.er-api.com/v6/latest/" + c.Exchange.BaseCurrency
	}
	if c.Exchange.CacheDuration == 0 {
		c.Exchange.CacheDuration = time.Hour
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.MySQL = c.MySQL.WithDefaults()
}

// Validate 檢查設定值
func (c *Config) Validate() error {
	switch c.Ledger.Engine {
	case EngineMutex, EngineLMAX, EngineMySQL:
	default:
		return fmt.Errorf("unknown ledger engine %q", c.Ledger.Engine)
	}
	if c.Ledger.Engine == EngineMySQL && c.Ledger.WALPath != "" {
		return errors.New("wal_path is only supported by in-memory engines")
	}
	if c.Exchange.CacheDuration < 0 {
		return errors.New("exchange cache duration must not be negative")
	}
	return nil
}

// SlogLevel 將 Log.Level 轉為 slog.Level，無法辨識時使用 Info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// listenAddr "3000" -> ":3000"，已包含 host 的位址原樣回傳
func listenAddr(v string) string {
	if strings.Contains(v, ":") {
		return v
	}
	return ":" + v
}
