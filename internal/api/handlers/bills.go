package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

func (h *HandlerSet) getBill(ctx *fiber.Ctx) error {
	subscriber := ctx.Query("subscriber")
	if subscriber == "" {
		return fiber.NewError(http.StatusBadRequest, "subscriber is required")
	}

	period, err := h.bills.ParsePeriod(ctx.Query("period"))
	if err != nil {
		return translateError(err)
	}

	bill, err := h.bills.Generate(ctx.Context(), subscriber, period)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(bill)
}
