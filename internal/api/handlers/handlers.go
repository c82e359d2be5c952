package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/call-billing/internal/app"
	"github.com/acme/call-billing/internal/repository"
	billsvc "github.com/acme/call-billing/internal/service/bill"
	detailsvc "github.com/acme/call-billing/internal/service/detail"
	tariffsvc "github.com/acme/call-billing/internal/service/tariff"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	container *app.Container
	tariffs   *tariffsvc.Service
	details   *detailsvc.Service
	bills     *billsvc.Service
	calls     repository.CallRepository
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(container *app.Container) *HandlerSet {
	services := container.Services()
	return &HandlerSet{
		container: container,
		tariffs:   services.Tariff,
		details:   services.Details,
		bills:     services.Bills,
		calls:     container.Repositories().Calls,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	rules := v1.Group("/tariff-rules")
	rules.Post("/", h.createTariffRule)
	rules.Get("/", h.listTariffRules)
	rules.Get("/:id", h.getTariffRule)
	rules.Put("/:id", h.updateTariffRule)
	rules.Delete("/:id", h.deleteTariffRule)

	details := v1.Group("/call-details")
	details.Post("/", h.createCallDetail)
	details.Get("/", h.listCallDetails)
	details.Get("/:id", h.getCallDetail)
	details.Put("/:id", h.updateCallDetail)
	details.Delete("/:id", h.deleteCallDetail)

	calls := v1.Group("/calls")
	calls.Get("/", h.listCalls)
	calls.Get("/:call_id", h.getCall)

	v1.Get("/bills", h.getBill)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.container.Logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)

	if err := h.container.Postgres.DB().PingContext(healthCtx); err != nil {
		errs["postgres"] = err.Error()
	}

	if err := h.container.Redis.Inner().Ping(healthCtx).Err(); err != nil {
		errs["redis"] = err.Error()
	}

	if err := h.container.Scylla.Session().Query("SELECT now() FROM system.local").WithContext(healthCtx).Exec(); err != nil {
		errs["scylla"] = err.Error()
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
