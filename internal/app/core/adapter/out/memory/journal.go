package memory

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// Journal 是 WAL 的抽象 (pkg/wal.WAL 實作此介面)
type Journal interface {
	Write(v any) error
	ReadAll(callback func(jsonRaw []byte) error) error
}

type journalOp string

const (
	journalOpOpen     journalOp = "open"
	journalOpFund     journalOp = "fund"
	journalOpTransfer journalOp = "transfer"
)

// journalEntry WAL 中的一筆紀錄，包含已產生好的交易紀錄，重放時 ID 與時間不變
type journalEntry struct {
	Sequence       uint64               `json:"seq"`
	Op             journalOp            `json:"op"`
	Username       string               `json:"username"`
	CredentialHash string               `json:"credential_hash,omitempty"`
	To             string               `json:"to,omitempty"`
	Records        []domain.Transaction `json:"records,omitempty"`
}

// journal 包裝 Journal 並分配序號；nil 代表不寫 WAL
type journal struct {
	wal Journal
	seq atomic.Uint64
}

func newJournal(wal Journal) *journal {
	if wal == nil {
		return nil
	}
	return &journal{wal: wal}
}

// write 寫入 WAL，失敗時回傳 domain.ErrJournalWriteFailed
func (j *journal) write(entry journalEntry) error {
	if j == nil {
		return nil
	}
	entry.Sequence = j.seq.Add(1)
	if err := j.wal.Write(entry); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrJournalWriteFailed, err)
	}
	return nil
}

// replay 從 WAL 檔案恢復帳本狀態
// 只在建構時呼叫 (單執行緒)，不需要帳戶鎖
func (j *journal) replay(store usecase.AccountStore) error {
	if j == nil {
		return nil
	}
	return j.wal.ReadAll(func(jsonRaw []byte) error {
		var entry journalEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return err
		}
		if err := applyJournalEntry(store, entry); err != nil {
			return fmt.Errorf("replay seq %d (%s %s): %w", entry.Sequence, entry.Op, entry.Username, err)
		}
		if entry.Sequence > j.seq.Load() {
			j.seq.Store(entry.Sequence)
		}
		return nil
	})
}

func applyJournalEntry(store usecase.AccountStore, entry journalEntry) error {
	switch entry.Op {
	case journalOpOpen:
		_, err := store.Create(entry.Username, entry.CredentialHash)
		return err
	case journalOpFund:
		if len(entry.Records) != 1 {
			return fmt.Errorf("fund entry has %d records", len(entry.Records))
		}
		account, err := store.Get(entry.Username)
		if err != nil {
			return err
		}
		return account.Apply(entry.Records[0])
	case journalOpTransfer:
		if len(entry.Records) != 2 {
			return fmt.Errorf("transfer entry has %d records", len(entry.Records))
		}
		sender, err := store.Get(entry.Username)
		if err != nil {
			return err
		}
		receiver, err := store.Get(entry.To)
		if err != nil {
			return err
		}
		return domain.ApplyTransfer(sender, receiver, domain.TransferPair{
			Debit:  entry.Records[0],
			Credit: entry.Records[1],
		})
	default:
		return fmt.Errorf("unknown journal op %q", entry.Op)
	}
}
