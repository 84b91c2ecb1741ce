package domain

import "time"

// TransactionKind 交易方向
type TransactionKind string

const (
	// 入帳
	TransactionKindCredit TransactionKind = "credit"
	// 出帳
	TransactionKindDebit TransactionKind = "debit"
)

// Valid 是否為已知的交易方向
func (k TransactionKind) Valid() bool {
	return k == TransactionKindCredit || k == TransactionKindDebit
}

// Transaction 單一帳戶的一筆交易紀錄，建立後不可變更
type Transaction struct {
	// ID: 全局唯一識別碼 (預設為 UUID)
	ID string `json:"id"`
	// Kind: credit / debit
	Kind TransactionKind `json:"kind"`
	// Amount: 異動金額，永遠為正數
	Amount Amount `json:"amt"`
	// UpdatedBalance: 套用此筆交易後的帳戶餘額快照
	UpdatedBalance Amount `json:"updated_bal"`
	// Timestamp: 建立時間
	Timestamp time.Time `json:"timestamp"`
}

// NewTransaction 建立一筆交易紀錄
func NewTransaction(id string, kind TransactionKind, amount, updatedBalance Amount, at time.Time) Transaction {
	return Transaction{
		ID:             id,
		Kind:           kind,
		Amount:         amount,
		UpdatedBalance: updatedBalance,
		Timestamp:      at,
	}
}

// Signed 回傳帶正負號的金額 (credit 為正、debit 為負)
func (t Transaction) Signed() Amount {
	if t.Kind == TransactionKindDebit {
		return -t.Amount
	}
	return t.Amount
}

// TransferPair 轉帳產生的一對交易紀錄
type TransferPair struct {
	Debit  Transaction
	Credit Transaction
}

// GetLockIDs 回傳需要鎖定的帳號，並確保順序以避免死鎖
// 自己轉給自己時只回傳一個帳號
func GetLockIDs(from, to string) []string {
	switch {
	case from == to:
		return []string{from}
	case from < to:
		return []string{from, to}
	default:
		return []string{to, from}
	}
}
