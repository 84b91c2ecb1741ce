package memory

import (
	"sort"
	"sync"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// AccountStore 以 username 為 key 的帳戶儲存
//
// map 本身由 RWMutex 保護；帳戶內容由各自的帳戶鎖保護。
type AccountStore struct {
	accounts map[string]*domain.Account
	mu       sync.RWMutex
}

// NewAccountStore 建立空的帳戶儲存
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Get 取得帳戶 (共享實例，不是副本)
func (s *AccountStore) Get(username string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

// Create 建立帳戶
func (s *AccountStore) Create(username, credentialHash string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[username]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	account := domain.NewAccount(username, credentialHash)
	s.accounts[username] = account
	return account, nil
}

// Len 帳戶數量
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Range 依 username 排序走訪所有帳戶，fn 回傳 false 時停止
// fn 執行期間不持有 store 的鎖
func (s *AccountStore) Range(fn func(account *domain.Account) bool) {
	s.mu.RLock()
	accounts := make([]*domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, account)
	}
	s.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	for _, account := range accounts {
		if !fn(account) {
			return
		}
	}
}

var _ usecase.AccountStore = (*AccountStore)(nil)
