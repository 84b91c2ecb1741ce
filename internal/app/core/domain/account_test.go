package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_Apply(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("credit then debit", func(t *testing.T) {
		acc := NewAccount("alice", "hash")
		require.NoError(t, acc.Apply(NewTransaction("t1", TransactionKindCredit, AmountFromInt(100), AmountFromInt(100), at)))
		require.NoError(t, acc.Apply(NewTransaction("t2", TransactionKindDebit, AmountFromInt(40), AmountFromInt(60), at)))

		assert.Equal(t, AmountFromInt(60), acc.Balance)
		history := acc.History()
		require.Len(t, history, 2)
		assert.Equal(t, "t2", history[0].ID)
		assert.Equal(t, "t1", history[1].ID)
	})

	t.Run("rejects overdraft", func(t *testing.T) {
		acc := NewAccount("alice", "hash")
		err := acc.Apply(NewTransaction("t1", TransactionKindDebit, AmountFromInt(1), AmountFromInt(-1), at))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, Amount(0), acc.Balance)
		assert.Equal(t, 0, acc.Len())
	})

	t.Run("rejects non positive amount", func(t *testing.T) {
		acc := NewAccount("alice", "hash")
		err := acc.Apply(NewTransaction("t1", TransactionKindCredit, 0, 0, at))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects wrong snapshot", func(t *testing.T) {
		acc := NewAccount("alice", "hash")
		err := acc.Apply(NewTransaction("t1", TransactionKindCredit, AmountFromInt(5), AmountFromInt(6), at))
		assert.ErrorIs(t, err, ErrBalanceMismatch)
		assert.Equal(t, 0, acc.Len())
	})
}

func TestAccount_NextTimestamp(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	acc := NewAccount("alice", "hash")
	assert.Equal(t, at, acc.NextTimestamp(at))

	require.NoError(t, acc.Apply(NewTransaction("t1", TransactionKindCredit, AmountFromInt(1), AmountFromInt(1), at)))
	earlier := at.Add(-time.Minute)
	assert.Equal(t, at, acc.NextTimestamp(earlier))
	later := at.Add(time.Minute)
	assert.Equal(t, later, acc.NextTimestamp(later))
}

func TestAccount_SnapshotIsDetached(t *testing.T) {
	at := time.Now()
	acc := NewAccount("alice", "hash")
	snap := acc.Snapshot()
	require.NoError(t, acc.Apply(NewTransaction("t1", TransactionKindCredit, AmountFromInt(1), AmountFromInt(1), at)))

	assert.Equal(t, Amount(0), snap.Balance)
	assert.Equal(t, 0, snap.Len())
}

func TestAccount_MarshalJSON(t *testing.T) {
	acc := NewAccount("alice", "secret-hash")
	data, err := json.Marshal(acc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice","balance":0,"transactions":[]}`, string(data))
	assert.NotContains(t, string(data), "secret-hash")
}
