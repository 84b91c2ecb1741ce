package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
)

// NewApp 建立 Fiber App 並註冊所有路由
//
//	POST /api/users/register   (公開)
//	POST /api/payments/fund    (Basic)
//	POST /api/payments/pay     (Basic)
//	GET  /api/payments/bal     (Basic)
//	GET  /api/payments/stmt    (Basic)
//	GET  /healthz
func NewApp(core *usecase.CoreUseCase, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(AccessLog(logger))
	app.Use(recover.New())

	h := NewHandler(core)
	app.Get("/healthz", h.Health)

	api := app.Group("/api")
	api.Post("/users/register", h.Register)

	payments := api.Group("/payments", Protected(core))
	payments.Post("/fund", h.Fund)
	payments.Post("/pay", h.Pay)
	payments.Get("/bal", h.Balance)
	payments.Get("/stmt", h.Statement)

	return app
}
