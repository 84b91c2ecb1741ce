package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-wallet/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	Username       string `gorm:"primaryKey;size:64"`
	CredentialHash string `gorm:"size:72;not null"`
	Balance        int64  `gorm:"not null;default:0"` // 以 domain.CurrencyScale 為單位
	// 最後一筆交易時間，確保單一帳戶的時間戳記不會倒退
	LastTxAt  *time.Time `gorm:"precision:6"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"` // 寫入順序
	RefID          string    `gorm:"column:ref_id;size:64;uniqueIndex"`
	Username       string    `gorm:"size:64;index"`
	Kind           string    `gorm:"size:8"`
	Amount         int64     `gorm:"not null"`
	UpdatedBalance int64     `gorm:"not null"`
	OccurredAt     time.Time `gorm:"precision:6"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func (t *sqlTransaction) toDomain() domain.Transaction {
	return domain.NewTransaction(
		t.RefID,
		domain.TransactionKind(t.Kind),
		domain.Amount(t.Amount),
		domain.Amount(t.UpdatedBalance),
		t.OccurredAt.UTC(),
	)
}

func newSQLTransaction(username string, tran domain.Transaction) sqlTransaction {
	return sqlTransaction{
		RefID:          tran.ID,
		Username:       username,
		Kind:           string(tran.Kind),
		Amount:         int64(tran.Amount),
		UpdatedBalance: int64(tran.UpdatedBalance),
		OccurredAt:     tran.Timestamp,
	}
}

// toDomain 以資料列建立 domain.Account，讓扣款 / 入帳檢查沿用同一套規則
func (a *sqlAccount) toDomain() *domain.Account {
	account := domain.NewAccount(a.Username, a.CredentialHash)
	account.Balance = domain.Amount(a.Balance)
	return account
}

// MySQLLedger 以 MySQL 持久化的帳本
//
// 每個操作都是一個 DB Transaction，涉及的帳戶以 SELECT ... FOR UPDATE 依 username 排序上鎖。
type MySQLLedger struct {
	client *mysql.Client
	clock  domain.Clock
	newID  domain.IDGenerator
}

// Option 定義了 MySQLLedger 的配置選項函數
type Option func(*MySQLLedger)

// WithClock 設定交易時間來源
func WithClock(clock domain.Clock) Option {
	return func(l *MySQLLedger) {
		l.clock = clock
	}
}

// WithIDGenerator 設定交易 ID 產生器
func WithIDGenerator(newID domain.IDGenerator) Option {
	return func(l *MySQLLedger) {
		l.newID = newID
	}
}

func NewMySQLLedger(client *mysql.Client, opts ...Option) *MySQLLedger {
	ledger := &MySQLLedger{
		client: client,
		clock:  domain.SystemClock,
		newID:  domain.NewUUID,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// Migrate 建立 / 更新資料表
func (ledger *MySQLLedger) Migrate(ctx context.Context) error {
	return ledger.client.WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

// CreateAccount 建立帳戶
func (ledger *MySQLLedger) CreateAccount(ctx context.Context, username, credentialHash string) (*domain.Account, error) {
	row := sqlAccount{
		Username:       username,
		CredentialHash: credentialHash,
	}
	if err := ledger.client.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrAccountAlreadyExists
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// CredentialHash 取得密碼雜湊
func (ledger *MySQLLedger) CredentialHash(ctx context.Context, username string) (string, error) {
	row, err := ledger.findAccount(ledger.client.WithContext(ctx), username)
	if err != nil {
		return "", err
	}
	return row.CredentialHash, nil
}

// Fund 入金
func (ledger *MySQLLedger) Fund(ctx context.Context, username string, amount domain.Amount) (domain.Amount, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance domain.Amount
	err := ledger.client.Transaction(ctx, func(tx *gorm.DB) error {
		rows, err := lockAccounts(tx, username)
		if err != nil {
			return err
		}
		row, ok := rows[username]
		if !ok {
			return domain.ErrAccountNotFound
		}
		account := row.toDomain()
		tran, err := account.PlanCredit(ledger.newID(), amount, clampTime(ledger.now(), row.LastTxAt))
		if err != nil {
			return err
		}
		if err := account.Apply(tran); err != nil {
			return err
		}
		if err := saveAccount(tx, row, account.Balance, tran.Timestamp); err != nil {
			return err
		}
		record := newSQLTransaction(username, tran)
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		balance = account.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Transfer 轉帳，只回傳付款人的新餘額
func (ledger *MySQLLedger) Transfer(ctx context.Context, from, to string, amount domain.Amount) (domain.Amount, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var balance domain.Amount
	err := ledger.client.Transaction(ctx, func(tx *gorm.DB) error {
		// 取得鎖定帳號 悲觀鎖
		rows, err := lockAccounts(tx, domain.GetLockIDs(from, to)...)
		if err != nil {
			return err
		}
		receiverRow, ok := rows[to]
		if !ok {
			return domain.ErrRecipientNotFound
		}
		senderRow, ok := rows[from]
		if !ok {
			return domain.ErrAccountNotFound
		}

		sender := senderRow.toDomain()
		receiver := sender
		if from != to {
			receiver = receiverRow.toDomain()
		}
		now := clampTime(clampTime(ledger.now(), senderRow.LastTxAt), receiverRow.LastTxAt)
		pair, err := domain.PlanTransfer(sender, receiver, ledger.newID(), ledger.newID(), amount, now)
		if err != nil {
			return err
		}
		if err := domain.ApplyTransfer(sender, receiver, pair); err != nil {
			return err
		}

		if err := saveAccount(tx, senderRow, sender.Balance, now); err != nil {
			return err
		}
		if from != to {
			if err := saveAccount(tx, receiverRow, receiver.Balance, now); err != nil {
				return err
			}
		}
		records := []sqlTransaction{
			newSQLTransaction(from, pair.Debit),
			newSQLTransaction(to, pair.Credit),
		}
		if err := tx.Create(&records).Error; err != nil {
			return err
		}
		balance = pair.Debit.UpdatedBalance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// GetBalance 取得帳戶餘額
func (ledger *MySQLLedger) GetBalance(ctx context.Context, username string) (domain.Amount, error) {
	row, err := ledger.findAccount(ledger.client.WithContext(ctx), username)
	if err != nil {
		return 0, err
	}
	return domain.Amount(row.Balance), nil
}

// GetHistory 取得交易紀錄 (新 -> 舊)
func (ledger *MySQLLedger) GetHistory(ctx context.Context, username string) ([]domain.Transaction, error) {
	history := make([]domain.Transaction, 0)
	err := ledger.client.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := ledger.findAccount(tx, username); err != nil {
			return err
		}
		var records []sqlTransaction
		if err := tx.Where("username = ?", username).Order("id DESC").Find(&records).Error; err != nil {
			return err
		}
		for i := range records {
			history = append(history, records[i].toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (ledger *MySQLLedger) findAccount(db *gorm.DB, username string) (*sqlAccount, error) {
	var row sqlAccount
	err := db.Where("username = ?", username).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &row, nil
}

// lockAccounts 依 username 排序取得列鎖，回傳存在的帳戶
func lockAccounts(tx *gorm.DB, usernames ...string) (map[string]*sqlAccount, error) {
	var rows []sqlAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("username IN ?", usernames).
		Order("username").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]*sqlAccount, len(rows))
	for i := range rows {
		result[rows[i].Username] = &rows[i]
	}
	return result, nil
}

func saveAccount(tx *gorm.DB, row *sqlAccount, balance domain.Amount, lastTxAt time.Time) error {
	return tx.Model(row).Updates(map[string]any{
		"balance":    int64(balance),
		"last_tx_at": lastTxAt,
	}).Error
}

// now 資料庫只保存到微秒
func (ledger *MySQLLedger) now() time.Time {
	return ledger.clock.Now().UTC().Truncate(time.Microsecond)
}

// clampTime 回傳不早於 floor 的時間
func clampTime(now time.Time, floor *time.Time) time.Time {
	if floor != nil && now.Before(*floor) {
		return floor.UTC()
	}
	return now
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
