package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-wallet/api/ledgerv1"
	grpcpool "github.com/JoeShih716/go-mem-wallet/pkg/grpc"
)

// 壓測參數
var (
	target      string
	password    string
	totalCount  int
	concurrency int
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "test_rpc_client",
	Short: "Concurrent fund/transfer load against the wallet gRPC service",
	Long: `Registers two users, then fires concurrent Fund and Transfer calls
and verifies that the final balances match the number of successful calls.
A mismatch means an update was lost.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVar(&target, "target", "localhost:50051", "gRPC server address")
	rootCmd.Flags().StringVar(&password, "password", "loadtest", "password for the load test users")
	rootCmd.Flags().IntVarP(&totalCount, "count", "n", 100000, "number of requests")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 500, "number of in-flight requests")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 120*time.Second, "overall timeout")
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadUser 一個壓測帳號與它專屬的 client
type loadUser struct {
	name   string
	client ledgerv1.LedgerServiceClient
	pool   *grpcpool.Pool
}

func newLoadUser(name string) *loadUser {
	pool := grpcpool.NewPool(
		grpcpool.WithInterceptor(ledgerv1.BasicAuthInterceptor(name, password)),
		grpcpool.WithDefaultCallOptions(grpc.CallContentSubtype(ledgerv1.CodecName)),
	)
	return &loadUser{name: name, pool: pool}
}

func (u *loadUser) connect() error {
	conn, err := u.pool.GetConnection(target)
	if err != nil {
		return err
	}
	u.client = ledgerv1.NewLedgerServiceClient(conn)
	return nil
}

// register 帳號已存在時視為成功，方便重複執行
func (u *loadUser) register(ctx context.Context) error {
	_, err := u.client.Register(ctx, &ledgerv1.RegisterRequest{Username: u.name, Password: password})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	return err
}

func (u *loadUser) balance(ctx context.Context) (decimal.Decimal, error) {
	resp, err := u.client.GetBalance(ctx, &ledgerv1.GetBalanceRequest{})
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(resp.Balance)
}

func run(ctx context.Context) error {
	if totalCount <= 0 || concurrency <= 0 {
		return errors.New("count and concurrency must be positive")
	}

	suffix := time.Now().Format("150405")
	alice := newLoadUser("alice-" + suffix)
	bob := newLoadUser("bob-" + suffix)
	for _, u := range []*loadUser{alice, bob} {
		defer u.pool.Close()
		if err := u.connect(); err != nil {
			return err
		}
		if err := u.register(ctx); err != nil {
			return fmt.Errorf("register %s: %w", u.name, err)
		}
	}

	aliceStart, err := alice.balance(ctx)
	if err != nil {
		return err
	}
	bobStart, err := bob.balance(ctx)
	if err != nil {
		return err
	}

	var (
		wg        sync.WaitGroup
		funded    atomic.Int64
		moved     atomic.Int64
		failures  atomic.Int64
		sem       = make(chan struct{}, concurrency)
		startTime = time.Now()
	)
	for i := 0; i < totalCount; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			var err error
			// 偶數筆入金給 alice，奇數筆由 alice 轉 1 給 bob
			if idx%2 == 0 {
				_, err = alice.client.Fund(ctx, &ledgerv1.FundRequest{Amount: "1"})
				if err == nil {
					funded.Add(1)
				}
			} else {
				_, err = alice.client.Transfer(ctx, &ledgerv1.TransferRequest{To: bob.name, Amount: "1"})
				if err == nil {
					moved.Add(1)
				}
			}
			if err != nil {
				if failures.Add(1)%1000 == 1 {
					slog.Warn("request failed", "index", idx, "error", err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	slog.Info("load finished",
		"requests", totalCount,
		"funded", funded.Load(),
		"transferred", moved.Load(),
		"failed", failures.Load(),
		"elapsed", elapsed.String(),
		"tps", fmt.Sprintf("%.2f", float64(totalCount)/elapsed.Seconds()),
	)

	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	aliceEnd, err := alice.balance(checkCtx)
	if err != nil {
		return err
	}
	bobEnd, err := bob.balance(checkCtx)
	if err != nil {
		return err
	}

	wantAlice := aliceStart.Add(decimal.NewFromInt(funded.Load() - moved.Load()))
	wantBob := bobStart.Add(decimal.NewFromInt(moved.Load()))
	if !aliceEnd.Equal(wantAlice) || !bobEnd.Equal(wantBob) {
		return fmt.Errorf("balance mismatch: %s=%s (want %s), %s=%s (want %s)",
			alice.name, aliceEnd, wantAlice, bob.name, bobEnd, wantBob)
	}
	slog.Info("balances consistent", alice.name, aliceEnd.String(), bob.name, bobEnd.String())
	return nil
}
