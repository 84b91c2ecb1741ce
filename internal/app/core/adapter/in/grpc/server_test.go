package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JoeShih716/go-mem-wallet/api/ledgerv1"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/security"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

type fixedRateConverter struct{}

func (fixedRateConverter) Convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	return amount.Mul(decimal.RequireFromString("0.012")), nil
}

// startServer 以 bufconn 啟動 gRPC Server，回傳 conn 工廠
func startServer(t *testing.T) func(opts ...grpc.DialOption) ledgerv1.LedgerServiceClient {
	t.Helper()
	ledger, err := memory.NewMutexLedger(memory.NewAccountStore())
	require.NoError(t, err)
	core := usecase.NewCoreUseCase(ledger, security.NewBcryptHasher(bcrypt.MinCost), fixedRateConverter{}, "INR")

	lis := bufconn.Listen(1 << 20)
	server := NewServer(core, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	return func(opts ...grpc.DialOption) ledgerv1.LedgerServiceClient {
		opts = append([]grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}, opts...)
		conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return ledgerv1.NewLedgerServiceClient(conn)
	}
}

func TestGrpcServer_Flow(t *testing.T) {
	ctx := context.Background()
	dial := startServer(t)
	anon := dial()

	for _, name := range []string{"alice", "bob"} {
		resp, err := anon.Register(ctx, &ledgerv1.RegisterRequest{Username: name, Password: "pw-" + name})
		require.NoError(t, err)
		assert.Equal(t, name, resp.Username)
		assert.Equal(t, "0", resp.Balance)
	}

	alice := dial(grpc.WithUnaryInterceptor(ledgerv1.BasicAuthInterceptor("alice", "pw-alice")))
	bob := dial(grpc.WithUnaryInterceptor(ledgerv1.BasicAuthInterceptor("bob", "pw-bob")))

	_, err := bob.Fund(ctx, &ledgerv1.FundRequest{Amount: "500"})
	require.NoError(t, err)

	fund, err := alice.Fund(ctx, &ledgerv1.FundRequest{Amount: "1000"})
	require.NoError(t, err)
	assert.Equal(t, "1000", fund.Balance)

	transfer, err := alice.Transfer(ctx, &ledgerv1.TransferRequest{To: "bob", Amount: "200"})
	require.NoError(t, err)
	assert.Equal(t, "800", transfer.Balance)

	balance, err := bob.GetBalance(ctx, &ledgerv1.GetBalanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "700", balance.Balance)
	assert.Equal(t, "INR", balance.Currency)

	converted, err := alice.GetBalance(ctx, &ledgerv1.GetBalanceRequest{Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "9.6", converted.Balance)
	assert.Equal(t, "USD", converted.Currency)

	statement, err := alice.GetStatement(ctx, &ledgerv1.GetStatementRequest{})
	require.NoError(t, err)
	require.Len(t, statement.Transactions, 2)
	assert.Equal(t, "debit", statement.Transactions[0].Kind)
	assert.Equal(t, "200", statement.Transactions[0].Amount)
	assert.Equal(t, "800", statement.Transactions[0].UpdatedBalance)
	assert.Equal(t, "credit", statement.Transactions[1].Kind)
}

func TestGrpcServer_Errors(t *testing.T) {
	ctx := context.Background()
	dial := startServer(t)
	anon := dial()
	_, err := anon.Register(ctx, &ledgerv1.RegisterRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	alice := dial(grpc.WithUnaryInterceptor(ledgerv1.BasicAuthInterceptor("alice", "pw")))

	tests := []struct {
		name string
		call func() error
		code codes.Code
		msg  string
	}{
		{
			name: "duplicate register",
			call: func() error {
				_, err := anon.Register(ctx, &ledgerv1.RegisterRequest{Username: "alice", Password: "x"})
				return err
			},
			code: codes.AlreadyExists,
			msg:  "user already exists",
		},
		{
			name: "register without password",
			call: func() error {
				_, err := anon.Register(ctx, &ledgerv1.RegisterRequest{Username: "bob"})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "username and password required",
		},
		{
			name: "missing credentials",
			call: func() error {
				_, err := anon.Fund(ctx, &ledgerv1.FundRequest{Amount: "1"})
				return err
			},
			code: codes.Unauthenticated,
			msg:  "missing authentication header",
		},
		{
			name: "wrong password",
			call: func() error {
				c := dial(grpc.WithUnaryInterceptor(ledgerv1.BasicAuthInterceptor("alice", "nope")))
				_, err := c.GetBalance(ctx, &ledgerv1.GetBalanceRequest{})
				return err
			},
			code: codes.Unauthenticated,
			msg:  "invalid credentials",
		},
		{
			name: "missing amount",
			call: func() error {
				_, err := alice.Fund(ctx, &ledgerv1.FundRequest{})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "amount is required",
		},
		{
			name: "negative amount",
			call: func() error {
				_, err := alice.Fund(ctx, &ledgerv1.FundRequest{Amount: "-5"})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "amount must be positive",
		},
		{
			name: "missing recipient",
			call: func() error {
				_, err := alice.Transfer(ctx, &ledgerv1.TransferRequest{Amount: "1"})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "recipient username is required",
		},
		{
			name: "unknown recipient",
			call: func() error {
				_, err := alice.Transfer(ctx, &ledgerv1.TransferRequest{To: "carol", Amount: "1"})
				return err
			},
			code: codes.NotFound,
			msg:  "recipient does not exist",
		},
		{
			name: "insufficient funds",
			call: func() error {
				_, err := alice.Transfer(ctx, &ledgerv1.TransferRequest{To: "alice", Amount: "1"})
				return err
			},
			code: codes.FailedPrecondition,
			msg:  "insufficient funds",
		},
		{
			name: "balance overflow",
			call: func() error {
				if _, err := alice.Fund(ctx, &ledgerv1.FundRequest{Amount: "900000000000000"}); err != nil {
					return err
				}
				_, err := alice.Fund(ctx, &ledgerv1.FundRequest{Amount: "900000000000000"})
				return err
			},
			code: codes.FailedPrecondition,
			msg:  "balance overflow",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.msg, st.Message())
		})
	}
}
