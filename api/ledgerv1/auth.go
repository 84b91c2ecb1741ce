package ledgerv1

import (
	"context"
	"encoding/base64"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// AuthorizationKey 存放 Basic 認證的 metadata key
const AuthorizationKey = "authorization"

// BasicAuth 產生 "Basic base64(username:password)"
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

const basicPrefix = "basic "

// IsBasicAuth 是否為 Basic scheme (不分大小寫)
func IsBasicAuth(header string) bool {
	return len(header) > len(basicPrefix) && strings.EqualFold(header[:len(basicPrefix)], basicPrefix)
}

// ParseBasicAuth 解析 Basic 認證字串，格式錯誤時 ok 為 false
func ParseBasicAuth(header string) (username, password string, ok bool) {
	if !IsBasicAuth(header) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(header[len(basicPrefix):])
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(raw), ":")
	if !ok {
		return "", "", false
	}
	return username, password, true
}

// BasicAuthInterceptor 在每個 unary 呼叫帶上 Basic 認證
func BasicAuthInterceptor(username, password string) grpc.UnaryClientInterceptor {
	value := BasicAuth(username, password)
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, AuthorizationKey, value)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
