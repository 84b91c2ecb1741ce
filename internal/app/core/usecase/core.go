package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層
type CoreUseCase struct {
	ledger       Ledger
	hasher       PasswordHasher
	converter    CurrencyConverter
	baseCurrency string
}

func NewCoreUseCase(ledger Ledger, hasher PasswordHasher, converter CurrencyConverter, baseCurrency string) *CoreUseCase {
	return &CoreUseCase{
		ledger:       ledger,
		hasher:       hasher,
		converter:    converter,
		baseCurrency: strings.ToUpper(baseCurrency),
	}
}

// BaseCurrency 帳本的基礎幣別
func (c *CoreUseCase) BaseCurrency() string {
	return c.baseCurrency
}

// Register 註冊新帳戶
func (c *CoreUseCase) Register(ctx context.Context, username, password string) (*domain.Account, error) {
	if username == "" || password == "" {
		return nil, domain.ErrCredentialsRequired
	}
	// 重複註冊不進行 bcrypt
	if _, err := c.ledger.CredentialHash(ctx, username); err == nil {
		return nil, domain.ErrAccountAlreadyExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	return c.ledger.CreateAccount(ctx, username, hash)
}

// Authenticate 驗證帳號密碼，成功時回傳 username
func (c *CoreUseCase) Authenticate(ctx context.Context, username, password string) (string, error) {
	hash, err := c.ledger.CredentialHash(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", err
	}
	if err := c.hasher.Compare(hash, password); err != nil {
		return "", err
	}
	return username, nil
}

// Fund 入金
func (c *CoreUseCase) Fund(ctx context.Context, username string, amount domain.Amount) (domain.Amount, error) {
	return c.ledger.Fund(ctx, username, amount)
}

// Transfer 轉帳
func (c *CoreUseCase) Transfer(ctx context.Context, from, to string, amount domain.Amount) (domain.Amount, error) {
	return c.ledger.Transfer(ctx, from, to, amount)
}

// Balance 取得餘額，currency 為空時使用基礎幣別
//
// 匯率換算在帳本讀取完成後才進行，不會佔用任何帳本鎖。
//
// 回傳:
//
//	decimal.Decimal: 換算後的餘額
//	string: 實際使用的幣別
//	error: 帳戶不存在或換算失敗
func (c *CoreUseCase) Balance(ctx context.Context, username, currency string) (decimal.Decimal, string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = c.baseCurrency
	}
	balance, err := c.ledger.GetBalance(ctx, username)
	if err != nil {
		return decimal.Zero, "", err
	}
	if currency == c.baseCurrency {
		return balance.Decimal(), currency, nil
	}
	converted, err := c.converter.Convert(ctx, balance.Decimal(), currency)
	if err != nil {
		return decimal.Zero, "", err
	}
	return converted, currency, nil
}

// Statement 取得交易紀錄
func (c *CoreUseCase) Statement(ctx context.Context, username string) ([]domain.Transaction, error) {
	return c.ledger.GetHistory(ctx, username)
}
