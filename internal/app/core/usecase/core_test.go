package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// plainHasher 測試用，雜湊就是 "hashed:" + 密碼
type plainHasher struct {
	calls int
}

func (h *plainHasher) Hash(password string) (string, error) {
	h.calls++
	return "hashed:" + password, nil
}

func (h *plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

// stubConverter 固定匯率並記錄呼叫次數
type stubConverter struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (c *stubConverter) Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	c.calls++
	if c.err != nil {
		return decimal.Zero, c.err
	}
	return amount.Mul(c.rate), nil
}

func newCore(t *testing.T) (*usecase.CoreUseCase, *plainHasher, *stubConverter) {
	t.Helper()
	ledger, err := memory.NewMutexLedger(memory.NewAccountStore())
	require.NoError(t, err)
	hasher := &plainHasher{}
	converter := &stubConverter{rate: decimal.RequireFromString("0.012")}
	return usecase.NewCoreUseCase(ledger, hasher, converter, "inr"), hasher, converter
}

func TestCoreUseCase_Register(t *testing.T) {
	ctx := context.Background()
	core, hasher, _ := newCore(t)

	account, err := core.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, domain.Amount(0), account.Balance)
	assert.Empty(t, account.History())

	_, err = core.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
	assert.Equal(t, 1, hasher.calls)

	_, err = core.Register(ctx, "", "pw")
	assert.ErrorIs(t, err, domain.ErrCredentialsRequired)
	_, err = core.Register(ctx, "bob", "")
	assert.ErrorIs(t, err, domain.ErrCredentialsRequired)
}

func TestCoreUseCase_Authenticate(t *testing.T) {
	ctx := context.Background()
	core, _, _ := newCore(t)
	_, err := core.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	username, err := core.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = core.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = core.Authenticate(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestCoreUseCase_Scenario(t *testing.T) {
	ctx := context.Background()
	core, _, _ := newCore(t)
	for _, name := range []string{"alice", "bob"} {
		_, err := core.Register(ctx, name, "pw")
		require.NoError(t, err)
	}
	_, err := core.Fund(ctx, "bob", domain.AmountFromInt(500))
	require.NoError(t, err)

	balance, err := core.Fund(ctx, "alice", domain.AmountFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, domain.AmountFromInt(1000), balance)

	balance, err = core.Transfer(ctx, "alice", "bob", domain.AmountFromInt(200))
	require.NoError(t, err)
	assert.Equal(t, domain.AmountFromInt(800), balance)

	bobBalance, currency, err := core.Balance(ctx, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, "INR", currency)
	assert.True(t, decimal.NewFromInt(700).Equal(bobBalance))

	statement, err := core.Statement(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, statement, 2)
	assert.Equal(t, domain.TransactionKindDebit, statement[0].Kind)
	assert.Equal(t, domain.AmountFromInt(800), statement[0].UpdatedBalance)
	assert.Equal(t, domain.TransactionKindCredit, statement[1].Kind)
	assert.Equal(t, domain.AmountFromInt(1000), statement[1].UpdatedBalance)
}

func TestCoreUseCase_Balance(t *testing.T) {
	ctx := context.Background()
	core, _, converter := newCore(t)
	_, err := core.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = core.Fund(ctx, "alice", domain.AmountFromInt(1000))
	require.NoError(t, err)

	t.Run("base currency never calls converter", func(t *testing.T) {
		for _, currency := range []string{"", "INR", "inr", " INR "} {
			balance, got, err := core.Balance(ctx, "alice", currency)
			require.NoError(t, err)
			assert.Equal(t, "INR", got)
			assert.True(t, decimal.NewFromInt(1000).Equal(balance))
		}
		assert.Equal(t, 0, converter.calls)
	})

	t.Run("converted", func(t *testing.T) {
		balance, got, err := core.Balance(ctx, "alice", "usd")
		require.NoError(t, err)
		assert.Equal(t, "USD", got)
		assert.True(t, decimal.NewFromInt(12).Equal(balance))
		assert.Equal(t, 1, converter.calls)
	})

	t.Run("conversion failure", func(t *testing.T) {
		converter.err = errors.Join(domain.ErrConversionFailed, domain.ErrUnsupportedCurrency)
		defer func() { converter.err = nil }()
		_, _, err := core.Balance(ctx, "alice", "XYZ")
		assert.ErrorIs(t, err, domain.ErrConversionFailed)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, _, err := core.Balance(ctx, "nobody", "")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}
