package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-wallet/api/ledgerv1"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

type GrpcServer struct {
	ledgerv1.UnimplementedLedgerServiceServer
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) Register(ctx context.Context, req *ledgerv1.RegisterRequest) (*ledgerv1.RegisterResponse, error) {
	account, err := s.core.Register(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ledgerv1.RegisterResponse{
		Username: account.Username,
		Balance:  account.Balance.String(),
	}, nil
}

func (s *GrpcServer) Fund(ctx context.Context, req *ledgerv1.FundRequest) (*ledgerv1.FundResponse, error) {
	username, err := usernameFrom(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	balance, err := s.core.Fund(ctx, username, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ledgerv1.FundResponse{Balance: balance.String()}, nil
}

func (s *GrpcServer) Transfer(ctx context.Context, req *ledgerv1.TransferRequest) (*ledgerv1.TransferResponse, error) {
	username, err := usernameFrom(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.To == "" {
		return nil, status.Error(codes.InvalidArgument, "recipient username is required")
	}
	balance, err := s.core.Transfer(ctx, username, req.To, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ledgerv1.TransferResponse{Balance: balance.String()}, nil
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *ledgerv1.GetBalanceRequest) (*ledgerv1.GetBalanceResponse, error) {
	username, err := usernameFrom(ctx)
	if err != nil {
		return nil, err
	}
	balance, currency, err := s.core.Balance(ctx, username, req.Currency)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ledgerv1.GetBalanceResponse{
		Balance:  balance.String(),
		Currency: currency,
	}, nil
}

func (s *GrpcServer) GetStatement(ctx context.Context, req *ledgerv1.GetStatementRequest) (*ledgerv1.GetStatementResponse, error) {
	username, err := usernameFrom(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.core.Statement(ctx, username)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ledgerv1.GetStatementResponse{
		Transactions: make([]*ledgerv1.Transaction, 0, len(history)),
	}
	for _, tran := range history {
		resp.Transactions = append(resp.Transactions, &ledgerv1.Transaction{
			ID:             tran.ID,
			Kind:           string(tran.Kind),
			Amount:         tran.Amount.String(),
			UpdatedBalance: tran.UpdatedBalance.String(),
			Timestamp:      tran.Timestamp,
		})
	}
	return resp, nil
}

// parseAmount 空字串或 0 視為未填
func parseAmount(raw string) (domain.Amount, error) {
	if raw == "" {
		return 0, status.Error(codes.InvalidArgument, "amount is required")
	}
	amount, err := domain.ParseAmount(raw)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, err.Error())
	}
	if amount == 0 {
		return 0, status.Error(codes.InvalidArgument, "amount is required")
	}
	return amount, nil
}

// toStatus 將 domain 錯誤轉為 gRPC status，訊息沿用原本的錯誤字串
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAmountFormat),
		errors.Is(err, domain.ErrCredentialsRequired),
		errors.Is(err, domain.ErrPasswordTooLong):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrRecipientNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrBalanceOverflow):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, domain.ErrConversionFailed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
