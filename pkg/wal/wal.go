package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
	FileModePrivate fs.FileMode = 0600
)

// ErrCorrupted 完整的一行無法解析為 JSON
var ErrCorrupted = errors.New("wal: corrupted record")

// WAL 以 JSON Lines 格式追加寫入的日誌檔
//
// 每筆紀錄一行，以單次 write + fsync 寫入。
// 程序在寫入途中崩潰時檔尾可能留下沒有換行的殘缺紀錄，ReadAll 會把它截掉。
type WAL struct {
	file *os.File
	size int64 // 最後一筆完整紀錄的結尾位置
	mu   sync.Mutex
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	// 內容包含密碼雜湊，只允許擁有者讀寫
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &WAL{file: file, size: info.Size()}, nil
}

// Write 寫入一筆資料並刷入硬碟，回傳 nil 時資料已落地
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wal: encode record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.file.Write(line)
	if err != nil {
		// 寫了一半的內容截掉，避免下一筆接在殘缺紀錄後面
		if n > 0 {
			_ = w.file.Truncate(w.size)
		}
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.size += int64(n)
	return nil
}

// Size 目前檔案大小 (bytes)
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 依寫入順序讀取所有紀錄
// callback 收到的是一行 JSON (不含換行)，逐行讀取不會一次將所有資料載入記憶體
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取 (O_APPEND 的寫入不受 offset 影響)
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(w.file)
	var offset int64
	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				// 殘缺的最後一筆: 從未確認寫入成功，直接丟棄
				if err := w.file.Truncate(offset); err != nil {
					return err
				}
			}
			w.size = offset
			return nil
		}
		if err != nil {
			return err
		}
		offset += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return fmt.Errorf("%w at line %d", ErrCorrupted, lineNo)
		}
		if err := callback(line); err != nil {
			return err
		}
	}
}
