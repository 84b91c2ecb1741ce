// Package ledgerv1 定義 ledger.v1.LedgerService 的 gRPC 介面
//
// 訊息以 JSON 編碼 (content-subtype "json")，金額一律以十進位字串傳遞，例如 "1000" 或 "12.5"。
//
// 介面是手寫的 ServiceDesc，沒有 protobuf descriptor，因此不提供 gRPC server reflection；
// grpcurl 等工具需要自行指定方法名稱與 JSON 內容。
package ledgerv1

import "time"

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Username string `json:"username"`
	Balance  string `json:"balance"`
}

// FundRequest 入金，對象為已認證的使用者
type FundRequest struct {
	Amount string `json:"amt"`
}

type FundResponse struct {
	Balance string `json:"balance"`
}

// TransferRequest 由已認證的使用者轉帳給 To
type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amt"`
}

// TransferResponse 只包含付款人的新餘額
type TransferResponse struct {
	Balance string `json:"balance"`
}

type GetBalanceRequest struct {
	Currency string `json:"currency,omitempty"` // 空字串代表基礎幣別
}

type GetBalanceResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

type GetStatementRequest struct{}

type GetStatementResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

// Transaction 一筆交易紀錄
type Transaction struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"` // credit | debit
	Amount         string    `json:"amt"`
	UpdatedBalance string    `json:"updated_bal"`
	Timestamp      time.Time `json:"timestamp"`
}
