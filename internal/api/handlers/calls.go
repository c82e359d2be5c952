package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/call-billing/internal/domain"
)

type callResponse struct {
	CallID      int64      `json:"call_id"`
	Source      string     `json:"source,omitempty"`
	Destination string     `json:"destination,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Complete    bool       `json:"complete"`
	Duration    string     `json:"duration"`
	PriceCents  int64      `json:"price_cents"`
}

type listCallsResponse struct {
	Calls []callResponse `json:"calls"`
}

func (h *HandlerSet) listCalls(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))

	calls, err := h.calls.List(ctx.Context(), limit)
	if err != nil {
		return translateError(err)
	}

	out := listCallsResponse{Calls: make([]callResponse, 0, len(calls))}
	for i := range calls {
		out.Calls = append(out.Calls, toCallResponse(&calls[i]))
	}
	return ctx.JSON(out)
}

func (h *HandlerSet) getCall(ctx *fiber.Ctx) error {
	callID, err := strconv.ParseInt(ctx.Params("call_id"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid call id")
	}

	call, err := h.calls.Get(ctx.Context(), callID)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toCallResponse(call))
}

func toCallResponse(call *domain.Call) callResponse {
	out := callResponse{
		CallID:     call.CallID,
		Complete:   call.Complete(),
		Duration:   call.Duration(),
		PriceCents: int64(call.Price),
	}
	if call.Start != nil {
		out.Source = call.Start.Source
		out.Destination = call.Start.Destination
		started := call.Start.Timestamp
		out.StartedAt = &started
	}
	if call.End != nil {
		ended := call.End.Timestamp
		out.EndedAt = &ended
	}
	return out
}
