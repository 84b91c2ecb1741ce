package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/currency"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/security"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

type testApp struct {
	t   *testing.T
	app *fiber.App
}

func newTestApp(t *testing.T, opts ...memory.Option) *testApp {
	t.Helper()
	rates := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		_, _ = w.Write([]byte(`{"result":"success","rates":{"INR":1,"USD":0.012}}`))
	}))
	t.Cleanup(rates.Close)

	ledger, err := memory.NewMutexLedger(memory.NewAccountStore(), opts...)
	require.NoError(t, err)
	converter := currency.NewExchangeRateConverter(currency.Config{BaseCurrency: "INR", APIURL: rates.URL})
	core := usecase.NewCoreUseCase(ledger, security.NewBcryptHasher(bcrypt.MinCost), converter, "INR")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testApp{t: t, app: NewApp(core, logger)}
}

func basic(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// do 發送請求並回傳 status 與解析後的 JSON
func (a *testApp) do(method, path, auth, body string) (int, any) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	var out any
	require.NoError(a.t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func (a *testApp) register(username, password string) {
	a.t.Helper()
	status, _ := a.do("POST", "/api/users/register", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(a.t, fiber.StatusCreated, status)
}

func errorOf(body any) string {
	m, _ := body.(map[string]any)
	s, _ := m["error"].(string)
	return s
}

func TestRegister(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do("POST", "/api/users/register", "", `{"username":"testuser","password":"test123"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, map[string]any{
		"username":     "testuser",
		"balance":      float64(0),
		"transactions": []any{},
	}, body)

	status, body = a.do("POST", "/api/users/register", "", `{"username":"testuser","password":"newpass"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "user already exists", errorOf(body))

	status, body = a.do("POST", "/api/users/register", "", `{"username":"nopass"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "username and password required", errorOf(body))

	status, body = a.do("POST", "/api/users/register", "", `{"username":"longpass","password":"`+strings.Repeat("p", 73)+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "password too long", errorOf(body))

	status, body = a.do("POST", "/api/users/register", "", `{"username":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", errorOf(body))
}

func TestAuthentication(t *testing.T) {
	a := newTestApp(t)
	a.register("alice", "alice123")

	tests := []struct {
		name   string
		auth   string
		status int
		error  string
	}{
		{name: "missing header", auth: "", status: fiber.StatusUnauthorized, error: "missing authentication header"},
		{name: "bearer scheme", auth: "Bearer abc", status: fiber.StatusUnauthorized, error: "missing authentication header"},
		{name: "malformed basic", auth: "Basic !!!", status: fiber.StatusUnauthorized, error: "invalid credentials"},
		{name: "wrong password", auth: basic("alice", "wrongpass"), status: fiber.StatusUnauthorized, error: "invalid credentials"},
		{name: "unknown user", auth: basic("mallory", "alice123"), status: fiber.StatusUnauthorized, error: "invalid credentials"},
		{name: "correct credentials", auth: basic("alice", "alice123"), status: fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do("GET", "/api/payments/bal", tt.auth, "")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.error, errorOf(body))
		})
	}
}

func TestFund(t *testing.T) {
	a := newTestApp(t)
	a.register("alice", "alice123")
	auth := basic("alice", "alice123")

	status, body := a.do("POST", "/api/payments/fund", auth, `{"amt":1000}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"balance": float64(1000)}, body)

	status, body = a.do("POST", "/api/payments/fund", auth, `{"amt":"0.5"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"balance": 1000.5}, body)

	tests := []struct {
		name  string
		body  string
		error string
	}{
		{name: "missing amount", body: `{}`, error: "amount is required"},
		{name: "empty body", body: ``, error: "amount is required"},
		{name: "zero amount", body: `{"amt":0}`, error: "amount is required"},
		{name: "negative amount", body: `{"amt":-100}`, error: "amount must be positive"},
		{name: "too many decimals", body: `{"amt":1.23456}`, error: "invalid amount: too many decimal places"},
		{name: "not a number", body: `{"amt":"abc"}`, error: `invalid amount: "abc"`},
		{name: "huge exponent", body: `{"amt":1e2000000000}`, error: "invalid amount: out of range"},
		{name: "balance overflow", body: `{"amt":922337203685477}`, error: "balance overflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do("POST", "/api/payments/fund", auth, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, tt.error, errorOf(body))
		})
	}

	_, body = a.do("GET", "/api/payments/bal", auth, "")
	assert.Equal(t, 1000.5, body.(map[string]any)["balance"])
}

func TestPay(t *testing.T) {
	a := newTestApp(t)
	a.register("alice", "alice123")
	a.register("bob", "bob456")
	alice := basic("alice", "alice123")
	status, _ := a.do("POST", "/api/payments/fund", alice, `{"amt":1000}`)
	require.Equal(t, fiber.StatusOK, status)

	status, body := a.do("POST", "/api/payments/pay", alice, `{"to":"bob","amt":200}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"balance": float64(800)}, body)

	tests := []struct {
		name  string
		body  string
		error string
	}{
		{name: "missing recipient", body: `{"amt":200}`, error: "recipient username is required"},
		{name: "missing amount", body: `{"to":"bob"}`, error: "amount is required"},
		{name: "insufficient funds", body: `{"to":"bob","amt":5000}`, error: "insufficient funds"},
		{name: "unknown recipient", body: `{"to":"charlie","amt":100}`, error: "recipient does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do("POST", "/api/payments/pay", alice, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, tt.error, errorOf(body))
		})
	}

	_, body = a.do("GET", "/api/payments/bal", basic("bob", "bob456"), "")
	assert.Equal(t, float64(200), body.(map[string]any)["balance"])
}

func TestBalance(t *testing.T) {
	a := newTestApp(t)
	a.register("alice", "alice123")
	auth := basic("alice", "alice123")
	_, _ = a.do("POST", "/api/payments/fund", auth, `{"amt":1500}`)

	status, body := a.do("GET", "/api/payments/bal", auth, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"balance": float64(1500), "currency": "INR"}, body)

	status, body = a.do("GET", "/api/payments/bal?currency=USD", auth, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"balance": float64(18), "currency": "USD"}, body)

	status, body = a.do("GET", "/api/payments/bal?currency=XYZ", auth, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "currency conversion failed: unsupported currency", errorOf(body))
}

func TestStatement(t *testing.T) {
	a := newTestApp(t)
	a.register("alice", "alice123")
	a.register("bob", "bob456")
	alice := basic("alice", "alice123")
	_, _ = a.do("POST", "/api/payments/fund", alice, `{"amt":1000}`)
	_, _ = a.do("POST", "/api/payments/pay", alice, `{"to":"bob","amt":200}`)

	status, body := a.do("GET", "/api/payments/stmt", alice, "")
	assert.Equal(t, fiber.StatusOK, status)
	records, ok := body.([]any)
	require.True(t, ok)
	require.Len(t, records, 2)

	first := records[0].(map[string]any)
	assert.Equal(t, "debit", first["kind"])
	assert.Equal(t, float64(200), first["amt"])
	assert.Equal(t, float64(800), first["updated_bal"])
	assert.NotEmpty(t, first["id"])
	assert.NotEmpty(t, first["timestamp"])
	assert.Equal(t, "credit", records[1].(map[string]any)["kind"])

	status, body = a.do("GET", "/api/payments/stmt", basic("bob", "bob456"), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body, 1)
}

// brokenJournal 第一筆之後全部寫入失敗
type brokenJournal struct {
	writes int
}

func (j *brokenJournal) Write(any) error {
	j.writes++
	if j.writes > 1 {
		return errors.New("disk full")
	}
	return nil
}

func (j *brokenJournal) ReadAll(func([]byte) error) error { return nil }

func TestJournalFailureIsInternalError(t *testing.T) {
	a := newTestApp(t, memory.WithJournal(&brokenJournal{}))
	a.register("alice", "alice123")

	status, body := a.do("POST", "/api/payments/fund", basic("alice", "alice123"), `{"amt":10}`)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", errorOf(body))
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	status, body := a.do("GET", "/healthz", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"status": "ok"}, body)
}
