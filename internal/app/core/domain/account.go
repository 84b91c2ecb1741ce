package domain

import (
	"encoding/json"
	"sync"
	"time"
)

// Account 使用者帳戶
//
// 同一個 username 在記憶體中只會有一個實例，所有持有者看到的是同一份狀態。
// 餘額與交易紀錄只能透過 Apply 改變，呼叫前必須先取得帳戶鎖。
type Account struct {
	Username       string
	CredentialHash string
	Balance        Amount
	// transactions 依寫入順序存放 (舊 -> 新)，對外一律以新 -> 舊輸出
	transactions []Transaction
	mu           sync.Mutex
}

// NewAccount 建立餘額為 0、沒有交易紀錄的帳戶
func NewAccount(username, credentialHash string) *Account {
	return &Account{
		Username:       username,
		CredentialHash: credentialHash,
		transactions:   make([]Transaction, 0),
	}
}

// Lock 取得帳戶鎖
func (a *Account) Lock() { a.mu.Lock() }

// Unlock 釋放帳戶鎖
func (a *Account) Unlock() { a.mu.Unlock() }

// Apply 套用一筆交易紀錄
//
// 參數:
//
//	tran: 已產生好 ID、時間與餘額快照的交易紀錄
//
// 回傳:
//
//	error: 金額非正數、餘額不足、或快照與計算結果不符
func (a *Account) Apply(tran Transaction) error {
	if !tran.Kind.Valid() || tran.Amount <= 0 {
		return ErrInvalidAmount
	}
	next := a.Balance + tran.Signed()
	if next < 0 {
		return ErrInsufficientFunds
	}
	if next != tran.UpdatedBalance {
		return ErrBalanceMismatch
	}
	a.Balance = next
	a.transactions = append(a.transactions, tran)
	return nil
}

// History 回傳交易紀錄副本，最新的在最前面
func (a *Account) History() []Transaction {
	history := make([]Transaction, len(a.transactions))
	for i, tran := range a.transactions {
		history[len(a.transactions)-1-i] = tran
	}
	return history
}

// Len 交易紀錄筆數
func (a *Account) Len() int {
	return len(a.transactions)
}

// NextTimestamp 回傳不早於最後一筆交易的時間，確保單一帳戶的時間戳記不會倒退
func (a *Account) NextTimestamp(now time.Time) time.Time {
	if n := len(a.transactions); n > 0 {
		if last := a.transactions[n-1].Timestamp; now.Before(last) {
			return last
		}
	}
	return now
}

// Snapshot 回傳與帳戶脫鉤的唯讀副本
func (a *Account) Snapshot() *Account {
	return &Account{
		Username:       a.Username,
		CredentialHash: a.CredentialHash,
		Balance:        a.Balance,
		transactions:   append(make([]Transaction, 0, len(a.transactions)), a.transactions...),
	}
}

// MarshalJSON 對外輸出 {username, balance, transactions}，交易由新到舊
func (a *Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountView{
		Username:     a.Username,
		Balance:      a.Balance,
		Transactions: a.History(),
	})
}

type accountView struct {
	Username     string        `json:"username"`
	Balance      Amount        `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}
