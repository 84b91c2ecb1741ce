package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-wallet/api/ledgerv1"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

type usernameKey struct{}

// publicMethods 不需要認證的方法
var publicMethods = map[string]bool{
	ledgerv1.LedgerService_Register_FullMethodName: true,
}

// AuthInterceptor 驗證 metadata 中的 Basic 認證，通過後把 username 放進 context
func AuthInterceptor(core *usecase.CoreUseCase) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(ledgerv1.AuthorizationKey)
		if len(values) == 0 || !ledgerv1.IsBasicAuth(values[0]) {
			return nil, status.Error(codes.Unauthenticated, domain.ErrUnauthorized.Error())
		}
		username, password, ok := ledgerv1.ParseBasicAuth(values[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, domain.ErrInvalidCredentials.Error())
		}
		username, err := core.Authenticate(ctx, username, password)
		if err != nil {
			return nil, toStatus(err)
		}
		return handler(context.WithValue(ctx, usernameKey{}, username), req)
	}
}

// usernameFrom 取得 AuthInterceptor 寫入的 username
func usernameFrom(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameKey{}).(string)
	if !ok || username == "" {
		return "", status.Error(codes.Unauthenticated, domain.ErrUnauthorized.Error())
	}
	return username, nil
}

// LoggingInterceptor 記錄每個 unary 呼叫的方法、狀態碼與耗時
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		level := slog.LevelInfo
		if code == codes.Internal || code == codes.Unknown {
			level = slog.LevelError
		}
		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"latency", time.Since(start),
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		logger.Log(ctx, level, "grpc request", attrs...)
		return resp, err
	}
}

// NewServer 建立已註冊 LedgerService 的 gRPC Server
//
// 攔截器順序: logging -> auth -> handler
func NewServer(core *usecase.CoreUseCase, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		LoggingInterceptor(logger),
		AuthInterceptor(core),
	))
	s := grpc.NewServer(opts...)
	ledgerv1.RegisterLedgerServiceServer(s, NewGrpcServer(core))
	return s
}
