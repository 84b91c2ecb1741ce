package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
)

// Ledger 是帳務系統的介面
type Ledger interface {
	// CreateAccount 建立帳戶，回傳帳戶快照
	CreateAccount(ctx context.Context, username, credentialHash string) (*domain.Account, error)
	// CredentialHash 取得帳戶的密碼雜湊 (供 Auth Gate 使用)
	CredentialHash(ctx context.Context, username string) (string, error)
	// Fund 入金，回傳新餘額
	Fund(ctx context.Context, username string, amount domain.Amount) (domain.Amount, error)
	// Transfer 轉帳，只回傳付款人的新餘額
	Transfer(ctx context.Context, from, to string, amount domain.Amount) (domain.Amount, error)
	// GetBalance 取得帳戶餘額
	GetBalance(ctx context.Context, username string) (domain.Amount, error)
	// GetHistory 取得交易紀錄 (新 -> 舊)
	GetHistory(ctx context.Context, username string) ([]domain.Transaction, error)
}

// AccountStore 帳戶儲存，帳戶狀態的唯一擁有者
type AccountStore interface {
	// Get 依 username 取得帳戶，不存在時回傳 domain.ErrAccountNotFound
	Get(username string) (*domain.Account, error)
	// Create 建立帳戶，已存在時回傳 domain.ErrAccountAlreadyExists
	Create(username, credentialHash string) (*domain.Account, error)
}

// CurrencyConverter 匯率換算，只在讀取餘額時使用
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error)
}

// PasswordHasher 密碼雜湊
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare 不相符時回傳 domain.ErrInvalidCredentials
	Compare(hash, password string) error
}
