package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// Handler 將 HTTP 請求轉給 CoreUseCase
type Handler struct {
	core *usecase.CoreUseCase
}

func NewHandler(core *usecase.CoreUseCase) *Handler {
	return &Handler{core: core}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type fundRequest struct {
	Amount *domain.Amount `json:"amt"`
}

type payRequest struct {
	To     string         `json:"to"`
	Amount *domain.Amount `json:"amt"`
}

type balanceResponse struct {
	Balance domain.Amount `json:"balance"`
}

type convertedBalanceResponse struct {
	Balance  json.Number `json:"balance"`
	Currency string      `json:"currency"`
}

// Register POST /api/users/register
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, domain.ErrCredentialsRequired.Error())
	}
	account, err := h.core.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(account)
}

// Fund POST /api/payments/fund
func (h *Handler) Fund(c *fiber.Ctx) error {
	var req fundRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Amount == nil || *req.Amount == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "amount is required")
	}
	balance, err := h.core.Fund(c.UserContext(), currentUser(c), *req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(balanceResponse{Balance: balance})
}

// Pay POST /api/payments/pay
func (h *Handler) Pay(c *fiber.Ctx) error {
	var req payRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.To == "" {
		return fiber.NewError(fiber.StatusBadRequest, "recipient username is required")
	}
	if req.Amount == nil || *req.Amount == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "amount is required")
	}
	balance, err := h.core.Transfer(c.UserContext(), currentUser(c), req.To, *req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(balanceResponse{Balance: balance})
}

// Balance GET /api/payments/bal?currency=USD
func (h *Handler) Balance(c *fiber.Ctx) error {
	balance, currency, err := h.core.Balance(c.UserContext(), currentUser(c), c.Query("currency"))
	if err != nil {
		return err
	}
	return c.JSON(convertedBalanceResponse{
		Balance:  json.Number(balance.String()),
		Currency: currency,
	})
}

// Statement GET /api/payments/stmt
func (h *Handler) Statement(c *fiber.Ctx) error {
	history, err := h.core.Statement(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(history)
}

// Health GET /healthz
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// parseBody 空 body 視為 {}，其他解析錯誤回傳 400
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, bodyError(err))
	}
	return nil
}

func bodyError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return "invalid request body"
	}
	// domain.ErrInvalidAmountFormat 等由 UnmarshalJSON 回傳的錯誤
	return err.Error()
}
