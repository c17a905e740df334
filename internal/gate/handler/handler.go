package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"othello/internal/gate"
	"othello/internal/platform/middleware"
	sugmodels "othello/internal/suggestion/models"
	dErrors "othello/pkg/domain-errors"
	"othello/pkg/platform/httputil"
)

type Handler struct {
	coordinator *gate.Coordinator
	logger      *slog.Logger
}

func New(coordinator *gate.Coordinator, logger *slog.Logger) *Handler {
	return &Handler{coordinator: coordinator, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/gate/submit", h.HandleSubmitBatch)
}

// HandleSubmitBatch evaluates a batch of candidate actions and returns every
// result, blocked and filtered ones included, tagged with their fate.
func (h *Handler) HandleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	actions, err := req.ToActions()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	items, err := h.coordinator.SubmitBatch(ctx, userID, actions)
	if err != nil {
		h.logger.ErrorContext(ctx, "submit batch failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	resp := SubmitBatchResponse{Items: make([]BatchItemResponse, 0, len(items))}
	for _, item := range items {
		itemResp := BatchItemResponse{Fate: string(item.Fate)}
		if item.Suggestion != nil {
			itemResp.Suggestion = sugmodels.ToResponse(item.Suggestion)
		}
		if item.Err != nil {
			itemResp.Error = errorCode(item.Err)
		}
		resp.Items = append(resp.Items, itemResp)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// errorCode maps a per-item failure to its wire code without leaking
// internals.
func errorCode(err error) string {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return httputil.DomainCodeToHTTPCode(domainErr.Code)
	}
	return httputil.DomainCodeToHTTPCode(dErrors.CodeInternal)
}
