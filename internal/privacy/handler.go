package privacy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"othello/internal/platform/middleware"
	sugmodels "othello/internal/suggestion/models"
	"othello/pkg/platform/httputil"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/me/data-export", h.HandleDataExport)
	r.Delete("/me", h.HandleDataErasure)
}

// HandleDataExport returns everything held about the caller in one document.
func (h *Handler) HandleDataExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	export, err := h.service.ExportData(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "data export failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toExportResponse(export))
}

// HandleDataErasure deletes the caller's data everywhere. This is the
// explicit erasure request; nothing else removes audit records.
func (h *Handler) HandleDataErasure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.EraseData(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "data erasure failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportResponse is the transport view of a full data export.
type ExportResponse struct {
	Tiers       []TierExport                   `json:"tiers"`
	Suggestions []*sugmodels.SuggestionResponse `json:"suggestions"`
	Records     []RecordExport                 `json:"audit_records"`
	GeneratedAt string                         `json:"generated_at"`
}

type TierExport struct {
	Scope     string `json:"scope"`
	Tier      string `json:"tier"`
	UpdatedAt string `json:"updated_at"`
}

type RecordExport struct {
	Seq           uint64 `json:"seq"`
	Kind          string `json:"kind"`
	Before        string `json:"before,omitempty"`
	After         string `json:"after"`
	Actor         string `json:"actor"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func toExportResponse(export *Export) *ExportResponse {
	resp := &ExportResponse{
		Tiers:       make([]TierExport, 0, len(export.Tiers)),
		Suggestions: make([]*sugmodels.SuggestionResponse, 0, len(export.Suggestions)),
		Records:     make([]RecordExport, 0, len(export.Records)),
		GeneratedAt: export.GeneratedAt.Format(time.RFC3339),
	}
	for _, grant := range export.Tiers {
		resp.Tiers = append(resp.Tiers, TierExport{
			Scope:     string(grant.Scope),
			Tier:      grant.Tier.String(),
			UpdatedAt: grant.UpdatedAt.Format(time.RFC3339),
		})
	}
	for _, suggestion := range export.Suggestions {
		resp.Suggestions = append(resp.Suggestions, sugmodels.ToResponse(suggestion))
	}
	for _, record := range export.Records {
		entry := RecordExport{
			Seq:       record.Seq,
			Kind:      string(record.Kind),
			Before:    record.Before,
			After:     record.After,
			Actor:     string(record.Actor),
			Timestamp: record.Timestamp.Format(time.RFC3339),
		}
		if !record.CorrelationID.IsNil() {
			entry.CorrelationID = record.CorrelationID.String()
		}
		resp.Records = append(resp.Records, entry)
	}
	return resp
}
