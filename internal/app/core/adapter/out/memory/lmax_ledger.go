package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// ErrLedgerStopped 核心引擎已停止，不再接受請求
var ErrLedgerStopped = errors.New("ledger stopped")

// ledgerRequest 交易請求包裝channel，讓呼叫端可以等待結果
type ledgerRequest struct {
	op     func() error
	result chan error // 讓呼叫端等這個 channel
}

// LMAXLedger 單一寫入者帳本
//
// 所有操作 (包含讀取) 都放上輸送帶，由 run loop 依序執行，因此帳戶不需要上鎖，
// 讀取看到的一定是完整套用後的狀態。使用前必須呼叫 Start。
type LMAXLedger struct {
	*engine
	// 輸送帶 負責接收請求
	requestChan chan *ledgerRequest
	// run loop 結束 (且已清空輸送帶) 時關閉
	done chan struct{}
	// Pool 減少 GC 壓力
	requestPool sync.Pool
	startOnce   sync.Once
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例
//
// 參數:
//
//	store: 帳戶儲存
//	opts: 時鐘、ID 產生器、WAL 等選項
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
//	error: 初始化錯誤
func NewLMAXLedger(store usecase.AccountStore, opts ...Option) (*LMAXLedger, error) {
	e, err := newEngine(store, opts)
	if err != nil {
		return nil, err
	}
	return &LMAXLedger{
		engine:      e,
		requestChan: make(chan *ledgerRequest, 1000), // Buffer 1000
		done:        make(chan struct{}),
		requestPool: sync.Pool{
			New: func() interface{} {
				return &ledgerRequest{
					result: make(chan error, 1),
				}
			},
		},
	}, nil
}

// Start 啟動核心引擎 (非同步)，ctx 結束時處理完剩下的請求後停止
func (l *LMAXLedger) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Done 回傳一個在引擎停止後關閉的 channel
func (l *LMAXLedger) Done() <-chan struct{} {
	return l.done
}

func (l *LMAXLedger) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain()
			return
		case req := <-l.requestChan:
			req.result <- req.op()
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case req := <-l.requestChan:
			req.result <- req.op()
		default:
			return
		}
	}
}

// submit 把操作放上輸送帶並等待結果
//
// PostRequest(等待) -> Channel -> Run Loop (核心) -> WAL -> Map Update -> Result Channel -> submit(收到結果)
//
// 放上輸送帶前可被 ctx 取消；放上之後一定會執行完畢，不會中途取消。
func (l *LMAXLedger) submit(ctx context.Context, op func() error) error {
	req := l.requestPool.Get().(*ledgerRequest)
	req.op = op

	select {
	case l.requestChan <- req:
	case <-ctx.Done():
		req.op = nil
		l.requestPool.Put(req)
		return ctx.Err()
	case <-l.done:
		return ErrLedgerStopped
	}

	select {
	case err := <-req.result:
		req.op = nil
		l.requestPool.Put(req)
		return err
	case <-l.done:
		// 引擎在結束前會先送出結果，所以這裡再確認一次
		select {
		case err := <-req.result:
			return err
		default:
			return ErrLedgerStopped
		}
	}
}

// CreateAccount 建立帳戶並回傳快照
func (l *LMAXLedger) CreateAccount(ctx context.Context, username, credentialHash string) (*domain.Account, error) {
	var snapshot *domain.Account
	err := l.submit(ctx, func() error {
		account, err := l.openAccount(username, credentialHash)
		if err != nil {
			return err
		}
		snapshot = account.Snapshot()
		return nil
	})
	return snapshot, err
}

// CredentialHash 取得密碼雜湊 (建立後不變，不經過輸送帶)
func (l *LMAXLedger) CredentialHash(ctx context.Context, username string) (string, error) {
	account, err := l.store.Get(username)
	if err != nil {
		return "", err
	}
	return account.CredentialHash, nil
}

// Fund 入金
func (l *LMAXLedger) Fund(ctx context.Context, username string, amount domain.Amount) (domain.Amount, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance domain.Amount
	err := l.submit(ctx, func() error {
		account, err := l.store.Get(username)
		if err != nil {
			return err
		}
		balance, err = l.credit(account, amount)
		return err
	})
	return balance, err
}

// Transfer 轉帳，只回傳付款人的新餘額
func (l *LMAXLedger) Transfer(ctx context.Context, from, to string, amount domain.Amount) (domain.Amount, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance domain.Amount
	err := l.submit(ctx, func() error {
		sender, receiver, err := l.resolveTransfer(from, to)
		if err != nil {
			return err
		}
		balance, err = l.transfer(sender, receiver, amount)
		return err
	})
	return balance, err
}

// GetBalance 取得指定帳戶的當前餘額
func (l *LMAXLedger) GetBalance(ctx context.Context, username string) (domain.Amount, error) {
	var balance domain.Amount
	err := l.submit(ctx, func() error {
		account, err := l.store.Get(username)
		if err != nil {
			return err
		}
		balance = account.Balance
		return nil
	})
	return balance, err
}

// GetHistory 取得交易紀錄 (新 -> 舊)
func (l *LMAXLedger) GetHistory(ctx context.Context, username string) ([]domain.Transaction, error) {
	var history []domain.Transaction
	err := l.submit(ctx, func() error {
		account, err := l.store.Get(username)
		if err != nil {
			return err
		}
		history = account.History()
		return nil
	})
	return history, err
}

var _ usecase.Ledger = (*LMAXLedger)(nil)
