package domain

import (
	"bytes"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// amount 使用int64，並定義精度：小數點後 4 位
const (
	CurrencyScale = 10000
	currencyExp   = -4

	// maxAmountLen 金額字串長度上限
	maxAmountLen = 64
	// maxAmountDigits int64 最多 19 位數，指數超出這個範圍的值不可能是合法金額
	maxAmountDigits = 19
)

// Amount 以基礎幣別計價的定點數金額 (1 單位 = 1/CurrencyScale)
type Amount int64

// AmountFromInt 由整數金額建立 Amount，例如 AmountFromInt(1000) 代表 1000.0000
func AmountFromInt(units int64) Amount {
	return Amount(units * CurrencyScale)
}

// ParseAmount 解析十進位字串，小數位數超過 4 位或超出範圍時回傳 ErrInvalidAmountFormat
func ParseAmount(s string) (Amount, error) {
	if len(s) > maxAmountLen {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmountFormat)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmountFormat, s)
	}
	return AmountFromDecimal(d)
}

// AmountFromDecimal 將 decimal 轉為 Amount
//
// 指數先檢查範圍再做任何縮放，"1e2000000000" 這類輸入不會展開成巨大的整數。
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsZero() {
		return 0, nil
	}
	exp := d.Exponent()
	if exp > maxAmountDigits {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmountFormat)
	}
	if exp < -(maxAmountDigits - currencyExp) {
		return 0, fmt.Errorf("%w: too many decimal places", ErrInvalidAmountFormat)
	}
	scaled := d.Shift(-currencyExp)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: too many decimal places", ErrInvalidAmountFormat)
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || scaled.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmountFormat)
	}
	return Amount(scaled.IntPart()), nil
}

// Decimal 轉為 decimal 以便做匯率換算或輸出
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), currencyExp)
}

// String 以最短的十進位表示輸出，例如 "1000" 或 "12.5"
func (a Amount) String() string {
	return a.Decimal().String()
}

// MarshalJSON 輸出為 JSON 數字 (不加引號)
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON 接受 JSON 數字或數字字串
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		s = string(data[1 : len(data)-1])
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
