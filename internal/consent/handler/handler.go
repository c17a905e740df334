package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"othello/internal/audit"
	"othello/internal/consent/models"
	"othello/internal/platform/middleware"
	id "othello/pkg/domain"
	dErrors "othello/pkg/domain-errors"
	"othello/pkg/platform/httputil"
)

// Service defines the interface for consent registry operations.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	GetTier(ctx context.Context, userID id.UserID, scope models.Scope) (id.ConsentTier, error)
	SetTier(ctx context.Context, userID id.UserID, scope models.Scope, tier id.ConsentTier, actor audit.Actor, confirm bool) (*models.TierGrant, error)
	ListTiers(ctx context.Context, userID id.UserID) ([]*models.TierGrant, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/consent/tiers", h.HandleListTiers)
	r.Get("/consent/tiers/{scope}", h.HandleGetTier)
	r.Put("/consent/tiers", h.HandleSetTier)
}

// HandleListTiers returns every explicit grant the authenticated user holds.
func (h *Handler) HandleListTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	grants, err := h.service.ListTiers(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list tiers failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	responses := make([]*models.TierResponse, 0, len(grants))
	for _, grant := range grants {
		responses = append(responses, toTierResponse(grant))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tiers": responses})
}

// HandleGetTier returns the effective tier for a scope, after fallback
// through the global scope and the system default.
func (h *Handler) HandleGetTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	scope := models.Scope(chi.URLParam(r, "scope"))
	tier, err := h.service.GetTier(ctx, userID, scope)
	if err != nil {
		h.logger.ErrorContext(ctx, "get tier failed", "error", err, "request_id", requestID, "scope", scope)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.TierResponse{
		Scope: string(scope),
		Tier:  tier.String(),
	})
}

// HandleSetTier changes the consent tier for a scope. Raising to autonomous
// requires confirm=true in the request body.
func (h *Handler) HandleSetTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.SetTierRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tier, err := id.ParseTier(req.Tier)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent tier"))
		return
	}

	grant, err := h.service.SetTier(ctx, userID, models.Scope(req.Scope), tier, audit.ActorUser, req.Confirm)
	if err != nil {
		h.logger.ErrorContext(ctx, "set tier failed", "error", err, "request_id", requestID, "scope", req.Scope)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toTierResponse(grant))
}

func toTierResponse(grant *models.TierGrant) *models.TierResponse {
	return &models.TierResponse{
		Scope:     string(grant.Scope),
		Tier:      grant.Tier.String(),
		UpdatedAt: grant.UpdatedAt.Format(time.RFC3339),
	}
}
