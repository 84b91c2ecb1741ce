package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/JoeShih716/go-mem-wallet/api/ledgerv1"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

const localsUsername = "username"

// Protected 驗證 Basic 認證，通過後把 username 存進 Locals
func Protected(core *usecase.CoreUseCase) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !ledgerv1.IsBasicAuth(header) {
			return domain.ErrUnauthorized
		}
		username, password, ok := ledgerv1.ParseBasicAuth(header)
		if !ok {
			return domain.ErrInvalidCredentials
		}
		username, err := core.Authenticate(c.UserContext(), username, password)
		if err != nil {
			return err
		}
		c.Locals(localsUsername, username)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) string {
	username, _ := c.Locals(localsUsername).(string)
	return username
}

// AccessLog 記錄 method / path / status / latency
//
// 錯誤會先交給 ErrorHandler 寫入回應，才能記錄到最終的 status。
func AccessLog(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if handleErr := c.App().ErrorHandler(c, err); handleErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()
		level := slog.LevelInfo
		if status >= fiber.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.UserContext(), level, "http request",
			"request_id", c.Locals(requestid.ConfigDefault.ContextKey),
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"user", currentUser(c),
		)
		return nil
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler 將錯誤轉成 {error} 回應
//
//	驗證 / 業務錯誤 -> 400
//	認證錯誤 -> 401
//	其他 (WAL、資料庫) -> 500，細節只寫 log
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(errorResponse{Error: fiberErr.Message})
		}
		status := statusFor(err)
		message := err.Error()
		if status == fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
			message = "internal server error"
		}
		return c.Status(status).JSON(errorResponse{Error: message})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAmountFormat),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrRecipientNotFound),
		errors.Is(err, domain.ErrAccountAlreadyExists),
		errors.Is(err, domain.ErrCredentialsRequired),
		errors.Is(err, domain.ErrPasswordTooLong),
		errors.Is(err, domain.ErrBalanceOverflow),
		errors.Is(err, domain.ErrConversionFailed):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
