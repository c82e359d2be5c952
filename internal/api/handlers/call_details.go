package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/call-billing/internal/domain"
	detailsvc "github.com/acme/call-billing/internal/service/detail"
)

type callDetailRequest struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Timestamp   string `json:"timestamp"`
	CallID      int64  `json:"call_id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type callDetailResponse struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	CallID      int64     `json:"call_id"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination,omitempty"`
}

type listCallDetailsResponse struct {
	Details []callDetailResponse `json:"details"`
}

func (h *HandlerSet) createCallDetail(ctx *fiber.Ctx) error {
	var req callDetailRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input, err := toDetailInput(req)
	if err != nil {
		return err
	}

	detail, err := h.details.Create(ctx.Context(), input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toCallDetailResponse(detail))
}

func (h *HandlerSet) listCallDetails(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))

	details, err := h.details.List(ctx.Context(), limit)
	if err != nil {
		return translateError(err)
	}

	out := listCallDetailsResponse{Details: make([]callDetailResponse, 0, len(details))}
	for i := range details {
		out.Details = append(out.Details, toCallDetailResponse(&details[i]))
	}
	return ctx.JSON(out)
}

func (h *HandlerSet) getCallDetail(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid detail id")
	}

	detail, err := h.details.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toCallDetailResponse(detail))
}

func (h *HandlerSet) updateCallDetail(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid detail id")
	}

	var req callDetailRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input, err := toDetailInput(req)
	if err != nil {
		return err
	}

	detail, err := h.details.Update(ctx.Context(), id, input)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toCallDetailResponse(detail))
}

func (h *HandlerSet) deleteCallDetail(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid detail id")
	}

	if err := h.details.Delete(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func toDetailInput(req callDetailRequest) (detailsvc.Input, error) {
	var id uuid.UUID
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			return detailsvc.Input{}, fiber.NewError(http.StatusBadRequest, "invalid detail id")
		}
		id = parsed
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return detailsvc.Input{}, fiber.NewError(http.StatusBadRequest, "timestamp must be RFC 3339")
		}
		ts = parsed
	}

	return detailsvc.Input{
		ID:          id,
		Kind:        domain.DetailKind(req.Type),
		Timestamp:   ts,
		CallID:      req.CallID,
		Source:      req.Source,
		Destination: req.Destination,
	}, nil
}

func toCallDetailResponse(detail *domain.CallDetail) callDetailResponse {
	return callDetailResponse{
		ID:          detail.ID,
		Type:        string(detail.Kind),
		Timestamp:   detail.Timestamp,
		CallID:      detail.CallID,
		Source:      detail.Source,
		Destination: detail.Destination,
	}
}
