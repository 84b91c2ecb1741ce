package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// Config 匯率服務設定
type Config struct {
	BaseCurrency  string        // 帳本的基礎幣別，例如 INR
	APIURL        string        // 回傳 {"rates": {...}} 的匯率 API
	CacheDuration time.Duration // 匯率快取時間，0 代表不快取
	Timeout       time.Duration // 單次 API 請求逾時
}

// ratesResponse 匯率 API 的回應格式
type ratesResponse struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// ExchangeRateConverter 以外部匯率 API 換算餘額
//
// 匯率表會快取 CacheDuration，同時間多個請求只會打一次 API。
type ExchangeRateConverter struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	rates     map[string]decimal.Decimal
	fetchedAt time.Time
}

// Option 定義了 ExchangeRateConverter 的配置選項函數
type Option func(*ExchangeRateConverter)

// WithHTTPClient 替換 HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *ExchangeRateConverter) {
		c.client = client
	}
}

// WithNow 替換快取使用的時間來源
func WithNow(now func() time.Time) Option {
	return func(c *ExchangeRateConverter) {
		c.now = now
	}
}

func NewExchangeRateConverter(cfg Config, opts ...Option) *ExchangeRateConverter {
	cfg.BaseCurrency = strings.ToUpper(cfg.BaseCurrency)
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	c := &ExchangeRateConverter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert 將基礎幣別金額換算成 currency
//
// 參數:
//
//	ctx: 上下文
//	amount: 基礎幣別金額
//	currency: 目標幣別 (不分大小寫)
//
// 回傳:
//
//	decimal.Decimal: 換算後金額，目標為基礎幣別時原樣回傳且不呼叫 API
//	error: 包裝 domain.ErrConversionFailed
func (c *ExchangeRateConverter) Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == c.cfg.BaseCurrency {
		return amount, nil
	}
	rates, err := c.getRates(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrConversionFailed, err)
	}
	rate, ok := rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrConversionFailed, domain.ErrUnsupportedCurrency)
	}
	return amount.Mul(rate), nil
}

func (c *ExchangeRateConverter) getRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if rates, ok := c.cachedRates(); ok {
		return rates, nil
	}

	ch := c.group.DoChan("rates", func() (interface{}, error) {
		// 呼叫端取消時不影響其他等待同一次請求的人
		rates, err := c.fetchRates(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.rates = rates
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return rates, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]decimal.Decimal), nil
	}
}

func (c *ExchangeRateConverter) cachedRates() (map[string]decimal.Decimal, bool) {
	if c.cfg.CacheDuration <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.rates == nil || c.now().Sub(c.fetchedAt) >= c.cfg.CacheDuration {
		return nil, false
	}
	return c.rates, true
}

func (c *ExchangeRateConverter) fetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate api returned status %d", resp.StatusCode)
	}
	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if body.Result == "error" {
		return nil, errors.New("rate api returned an error result")
	}
	if len(body.Rates) == 0 {
		return nil, domain.ErrUnsupportedCurrency
	}
	return body.Rates, nil
}

var _ usecase.CurrencyConverter = (*ExchangeRateConverter)(nil)
