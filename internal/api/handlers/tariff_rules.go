package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/call-billing/internal/domain"
	tariffsvc "github.com/acme/call-billing/internal/service/tariff"
	apperrors "github.com/acme/call-billing/pkg/errors"
)

type tariffRuleRequest struct {
	Name             string `json:"name"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	StandingCharge   int64  `json:"standing_charge_cents"`
	MinuteCallCharge int64  `json:"minute_call_charge_cents"`
}

type tariffRuleResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	StandingCharge   int64     `json:"standing_charge_cents"`
	MinuteCallCharge int64     `json:"minute_call_charge_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

type listTariffRulesResponse struct {
	Rules []tariffRuleResponse `json:"rules"`
}

func (h *HandlerSet) createTariffRule(ctx *fiber.Ctx) error {
	var req tariffRuleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input, err := toRuleInput(req)
	if err != nil {
		return translateError(err)
	}

	rule, err := h.tariffs.Create(ctx.Context(), input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toTariffRuleResponse(rule))
}

func (h *HandlerSet) listTariffRules(ctx *fiber.Ctx) error {
	rules, err := h.tariffs.List(ctx.Context())
	if err != nil {
		return translateError(err)
	}

	out := listTariffRulesResponse{Rules: make([]tariffRuleResponse, 0, len(rules))}
	for i := range rules {
		out.Rules = append(out.Rules, toTariffRuleResponse(&rules[i]))
	}
	return ctx.JSON(out)
}

func (h *HandlerSet) getTariffRule(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid rule id")
	}

	rule, err := h.tariffs.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toTariffRuleResponse(rule))
}

func (h *HandlerSet) updateTariffRule(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid rule id")
	}

	var req tariffRuleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input, err := toRuleInput(req)
	if err != nil {
		return translateError(err)
	}

	rule, err := h.tariffs.Update(ctx.Context(), id, input)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toTariffRuleResponse(rule))
}

func (h *HandlerSet) deleteTariffRule(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid rule id")
	}

	if err := h.tariffs.Delete(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func toRuleInput(req tariffRuleRequest) (tariffsvc.RuleInput, error) {
	start, err := domain.ParseClockTime(req.StartTime)
	if err != nil {
		return tariffsvc.RuleInput{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	end, err := domain.ParseClockTime(req.EndTime)
	if err != nil {
		return tariffsvc.RuleInput{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	return tariffsvc.RuleInput{
		Name:             req.Name,
		StartTime:        start,
		EndTime:          end,
		StandingCharge:   domain.Cents(req.StandingCharge),
		MinuteCallCharge: domain.Cents(req.MinuteCallCharge),
	}, nil
}

func toTariffRuleResponse(rule *domain.TariffRule) tariffRuleResponse {
	return tariffRuleResponse{
		ID:               rule.ID,
		Name:             rule.Name,
		StartTime:        rule.StartTime.String(),
		EndTime:          rule.EndTime.String(),
		StandingCharge:   int64(rule.StandingCharge),
		MinuteCallCharge: int64(rule.MinuteCallCharge),
		CreatedAt:        rule.CreatedAt,
	}
}
