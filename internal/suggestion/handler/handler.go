package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"othello/internal/audit"
	"othello/internal/platform/middleware"
	"othello/internal/suggestion/models"
	"othello/internal/suggestion/store"
	id "othello/pkg/domain"
	dErrors "othello/pkg/domain-errors"
	"othello/pkg/platform/httputil"
)

// Service defines the interface for suggestion ledger operations.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	Get(ctx context.Context, suggestionID id.SuggestionID) (*models.Suggestion, error)
	ListByUser(ctx context.Context, userID id.UserID, filter *store.Filter) ([]*models.Suggestion, error)
	Respond(ctx context.Context, suggestionID id.SuggestionID, decision models.Decision, response string, actor audit.Actor) (*models.Suggestion, error)
}

// TierResolver resolves the user's current tier for the recheck flow.
type TierResolver interface {
	Recheck(ctx context.Context, userID id.UserID, suggestionID id.SuggestionID) (*models.Suggestion, error)
}

type Handler struct {
	service  Service
	resolver TierResolver
	logger   *slog.Logger
}

func New(service Service, resolver TierResolver, logger *slog.Logger) *Handler {
	return &Handler{service: service, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/suggestions", h.HandleList)
	r.Get("/suggestions/{id}", h.HandleGet)
	r.Post("/suggestions/{id}/respond", h.HandleRespond)
	r.Post("/suggestions/{id}/recheck", h.HandleRecheck)
}

// HandleList returns the user's suggestions. Query parameters: status
// filters by lifecycle state, actionable=true narrows to the approvable set.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter := &store.Filter{
		ActionableOnly: r.URL.Query().Get("actionable") == "true",
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer"))
			return
		}
		filter.Offset = offset
	}

	suggestions, err := h.service.ListByUser(ctx, userID, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list suggestions failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	responses := make([]*models.SuggestionResponse, 0, len(suggestions))
	for _, suggestion := range suggestions {
		responses = append(responses, models.ToResponse(suggestion))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"suggestions": responses})
}

// HandleGet returns one suggestion with its full reasoning.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	suggestion, err := h.ownedSuggestion(ctx, r, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(suggestion))
}

// HandleRespond applies the user's approve or deny decision.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	suggestion, err := h.ownedSuggestion(ctx, r, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.RespondRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	decision, err := models.ParseDecision(req.Decision)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	responded, err := h.service.Respond(ctx, suggestion.ID, decision, req.Response, audit.ActorUser)
	if err != nil {
		h.logger.ErrorContext(ctx, "respond to suggestion failed",
			"error", err, "request_id", requestID, "suggestion_id", suggestion.ID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(responded))
}

// HandleRecheck re-derives the actionable flag under the user's current
// tier, typically after they raised it.
func (h *Handler) HandleRecheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	suggestion, err := h.ownedSuggestion(ctx, r, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rechecked, err := h.resolver.Recheck(ctx, userID, suggestion.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "recheck suggestion failed",
			"error", err, "request_id", requestID, "suggestion_id", suggestion.ID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(rechecked))
}

// ownedSuggestion parses the path id and verifies the suggestion belongs to
// the caller. Other users' suggestions read as not found, never as forbidden,
// so ids cannot be probed.
func (h *Handler) ownedSuggestion(ctx context.Context, r *http.Request, userID id.UserID) (*models.Suggestion, error) {
	suggestionID, err := id.ParseSuggestionID(chi.URLParam(r, "id"))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid suggestion id")
	}
	suggestion, err := h.service.Get(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.UserID != userID {
		return nil, store.ErrNotFound
	}
	return suggestion, nil
}
