package memory

import (
	"errors"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// Option 定義了記憶體帳本的配置選項函數
type Option func(*options)

type options struct {
	clock   domain.Clock
	newID   domain.IDGenerator
	journal Journal
}

// WithClock 設定交易時間來源
func WithClock(clock domain.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithIDGenerator 設定交易 ID 產生器
func WithIDGenerator(newID domain.IDGenerator) Option {
	return func(o *options) {
		o.newID = newID
	}
}

// WithJournal 啟用 WAL，每筆異動在套用前先寫入
func WithJournal(j Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// engine 兩種記憶體帳本共用的交易邏輯
// 所有方法都假設呼叫端已經取得相關帳戶的獨佔權 (帳戶鎖或單一寫入者)
type engine struct {
	store   usecase.AccountStore
	clock   domain.Clock
	newID   domain.IDGenerator
	journal *journal
}

func newEngine(store usecase.AccountStore, opts []Option) (*engine, error) {
	o := options{
		clock: domain.SystemClock,
		newID: domain.NewUUID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	e := &engine{
		store:   store,
		clock:   o.clock,
		newID:   o.newID,
		journal: newJournal(o.journal),
	}
	// 在啟動前先恢復資料
	if err := e.journal.replay(store); err != nil {
		return nil, err
	}
	return e, nil
}

// openAccount 建立帳戶，WAL 寫入成功後帳戶才會出現在 store
// 呼叫端必須序列化同時進行的 openAccount
func (e *engine) openAccount(username, credentialHash string) (*domain.Account, error) {
	if _, err := e.store.Get(username); err == nil {
		return nil, domain.ErrAccountAlreadyExists
	}
	err := e.journal.write(journalEntry{
		Op:             journalOpOpen,
		Username:       username,
		CredentialHash: credentialHash,
	})
	if err != nil {
		return nil, err
	}
	return e.store.Create(username, credentialHash)
}

// credit 入金: 產生紀錄 -> 寫 WAL -> 套用
func (e *engine) credit(account *domain.Account, amount domain.Amount) (domain.Amount, error) {
	tran, err := account.PlanCredit(e.newID(), amount, e.clock.Now())
	if err != nil {
		return 0, err
	}
	err = e.journal.write(journalEntry{
		Op:       journalOpFund,
		Username: account.Username,
		Records:  []domain.Transaction{tran},
	})
	if err != nil {
		return 0, err
	}
	if err := account.Apply(tran); err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// transfer 轉帳: 兩筆紀錄一起產生、一起寫入 WAL、一起套用
func (e *engine) transfer(sender, receiver *domain.Account, amount domain.Amount) (domain.Amount, error) {
	pair, err := domain.PlanTransfer(sender, receiver, e.newID(), e.newID(), amount, e.clock.Now())
	if err != nil {
		return 0, err
	}
	err = e.journal.write(journalEntry{
		Op:       journalOpTransfer,
		Username: sender.Username,
		To:       receiver.Username,
		Records:  []domain.Transaction{pair.Debit, pair.Credit},
	})
	if err != nil {
		return 0, err
	}
	if err := domain.ApplyTransfer(sender, receiver, pair); err != nil {
		return 0, err
	}
	return sender.Balance, nil
}

// resolveTransfer 依序檢查收款人、付款人是否存在
func (e *engine) resolveTransfer(from, to string) (sender, receiver *domain.Account, err error) {
	receiver, err = e.store.Get(to)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, nil, domain.ErrRecipientNotFound
		}
		return nil, nil, err
	}
	sender, err = e.store.Get(from)
	if err != nil {
		return nil, nil, err
	}
	return sender, receiver, nil
}
