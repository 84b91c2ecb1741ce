package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	engine: 共用交易邏輯 (store / clock / id / WAL)
//	openMu: 序列化建立帳戶，確保 WAL 紀錄先於帳戶出現
//
// 每個帳戶有自己的鎖；轉帳依 username 字典序上鎖以避免死鎖。
type MutexLedger struct {
	*engine
	openMu sync.Mutex
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	store: 帳戶儲存
//	opts: 時鐘、ID 產生器、WAL 等選項
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(store usecase.AccountStore, opts ...Option) (*MutexLedger, error) {
	e, err := newEngine(store, opts)
	if err != nil {
		return nil, err
	}
	return &MutexLedger{engine: e}, nil
}

// CreateAccount 建立帳戶並回傳快照
func (m *MutexLedger) CreateAccount(ctx context.Context, username, credentialHash string) (*domain.Account, error) {
	m.openMu.Lock()
	defer m.openMu.Unlock()
	account, err := m.openAccount(username, credentialHash)
	if err != nil {
		return nil, err
	}
	account.Lock()
	defer account.Unlock()
	return account.Snapshot(), nil
}

// CredentialHash 取得密碼雜湊 (建立後不變，不需上鎖)
func (m *MutexLedger) CredentialHash(ctx context.Context, username string) (string, error) {
	account, err := m.store.Get(username)
	if err != nil {
		return "", err
	}
	return account.CredentialHash, nil
}

// Fund 入金
//
// 參數:
//
//	ctx: 上下文
//	username: 帳戶
//	amount: 入金金額 (必須為正數)
//
// 回傳:
//
//	domain.Amount: 新餘額
//	error: domain.ErrInvalidAmount / domain.ErrAccountNotFound / domain.ErrJournalWriteFailed
func (m *MutexLedger) Fund(ctx context.Context, username string, amount domain.Amount) (domain.Amount, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	account, err := m.store.Get(username)
	if err != nil {
		return 0, err
	}
	account.Lock()
	defer account.Unlock()
	return m.credit(account, amount)
}

// Transfer 轉帳
//
// 參數:
//
//	ctx: 上下文
//	from: 付款人
//	to: 收款人
//	amount: 轉帳金額
//
// 回傳:
//
//	domain.Amount: 付款人的新餘額
//	error: 依序檢查 domain.ErrInvalidAmount、domain.ErrRecipientNotFound、
//	domain.ErrAccountNotFound、domain.ErrInsufficientFunds
func (m *MutexLedger) Transfer(ctx context.Context, from, to string, amount domain.Amount) (domain.Amount, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	sender, receiver, err := m.resolveTransfer(from, to)
	if err != nil {
		return 0, err
	}
	unlock := lockAccounts(sender, receiver)
	defer unlock()
	return m.transfer(sender, receiver, amount)
}

// GetBalance 取得指定帳戶的當前餘額
func (m *MutexLedger) GetBalance(ctx context.Context, username string) (domain.Amount, error) {
	account, err := m.store.Get(username)
	if err != nil {
		return 0, err
	}
	account.Lock()
	defer account.Unlock()
	return account.Balance, nil
}

// GetHistory 取得交易紀錄 (新 -> 舊)
func (m *MutexLedger) GetHistory(ctx context.Context, username string) ([]domain.Transaction, error) {
	account, err := m.store.Get(username)
	if err != nil {
		return nil, err
	}
	account.Lock()
	defer account.Unlock()
	return account.History(), nil
}

// lockAccounts 依 username 字典序上鎖，回傳解鎖函式
func lockAccounts(a, b *domain.Account) func() {
	if a == b {
		a.Lock()
		return a.Unlock
	}
	first, second := a, b
	if ids := domain.GetLockIDs(a.Username, b.Username); ids[0] != a.Username {
		first, second = b, a
	}
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}

var _ usecase.Ledger = (*MutexLedger)(nil)
