package domain

import "time"

// PlanCredit 產生一筆入帳紀錄但不套用，呼叫前必須持有帳戶鎖
func (a *Account) PlanCredit(id string, amount Amount, now time.Time) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	next := a.Balance + amount
	if next < a.Balance {
		return Transaction{}, ErrBalanceOverflow
	}
	return NewTransaction(id, TransactionKindCredit, amount, next, a.NextTimestamp(now)), nil
}

// PlanDebit 產生一筆出帳紀錄但不套用，呼叫前必須持有帳戶鎖
func (a *Account) PlanDebit(id string, amount Amount, now time.Time) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if a.Balance < amount {
		return Transaction{}, ErrInsufficientFunds
	}
	return NewTransaction(id, TransactionKindDebit, amount, a.Balance-amount, a.NextTimestamp(now)), nil
}

// PlanTransfer 產生轉帳的 debit / credit 兩筆紀錄，兩個帳戶都必須已上鎖
// sender 與 receiver 為同一帳戶時，credit 的餘額快照以 debit 之後的餘額計算
func PlanTransfer(sender, receiver *Account, debitID, creditID string, amount Amount, now time.Time) (TransferPair, error) {
	debit, err := sender.PlanDebit(debitID, amount, now)
	if err != nil {
		return TransferPair{}, err
	}
	if sender == receiver {
		credit := NewTransaction(creditID, TransactionKindCredit, amount, debit.UpdatedBalance+amount, debit.Timestamp)
		return TransferPair{Debit: debit, Credit: credit}, nil
	}
	credit, err := receiver.PlanCredit(creditID, amount, now)
	if err != nil {
		return TransferPair{}, err
	}
	return TransferPair{Debit: debit, Credit: credit}, nil
}

// ApplyTransfer 套用 PlanTransfer 產生的紀錄
func ApplyTransfer(sender, receiver *Account, pair TransferPair) error {
	if err := sender.Apply(pair.Debit); err != nil {
		return err
	}
	return receiver.Apply(pair.Credit)
}
