package domain

import "errors"

var (
	// ErrInvalidAmount 金額必須為正數
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidAmountFormat 金額格式錯誤
	ErrInvalidAmountFormat = errors.New("invalid amount")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrRecipientNotFound 收款人不存在
	ErrRecipientNotFound = errors.New("recipient does not exist")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("user already exists")

	// ErrCredentialsRequired 註冊時帳號密碼不可為空
	ErrCredentialsRequired = errors.New("username and password required")

	// ErrPasswordTooLong 密碼超過 bcrypt 可處理的 72 bytes
	ErrPasswordTooLong = errors.New("password too long")

	// ErrUnauthorized 缺少認證 Header
	ErrUnauthorized = errors.New("missing authentication header")

	// ErrInvalidCredentials 帳號或密碼錯誤
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrConversionFailed 匯率換算失敗
	ErrConversionFailed = errors.New("currency conversion failed")

	// ErrUnsupportedCurrency 不支援的幣別
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrJournalWriteFailed WAL 寫入失敗
	ErrJournalWriteFailed = errors.New("journal write failed")

	// ErrBalanceOverflow 餘額超出可表示範圍
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrBalanceMismatch 交易紀錄的餘額快照與帳戶不符 (WAL 重放時檢查)
	ErrBalanceMismatch = errors.New("balance snapshot mismatch")
)
