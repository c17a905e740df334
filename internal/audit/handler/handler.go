package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"othello/internal/audit"
	"othello/internal/platform/middleware"
	id "othello/pkg/domain"
	dErrors "othello/pkg/domain-errors"
	"othello/pkg/platform/httputil"
)

const defaultLimit = 50

// Auditor is the read side of the audit trail the handler exposes.
type Auditor interface {
	Query(ctx context.Context, userID id.UserID, filter *audit.Filter) ([]*audit.Record, error)
}

type Handler struct {
	auditor Auditor
	logger  *slog.Logger
}

func New(auditor Auditor, logger *slog.Logger) *Handler {
	return &Handler{auditor: auditor, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/records", h.HandleListRecords)
}

// HandleListRecords returns the caller's audit trail newest-first. Query
// parameters: kind narrows to one record kind, since is an RFC3339 lower
// bound, limit and offset paginate.
func (h *Handler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.auditor.Query(ctx, userID, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "query audit records failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	responses := make([]*RecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, toRecordResponse(record))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": responses})
}

func parseFilter(r *http.Request) (*audit.Filter, error) {
	filter := &audit.Filter{Limit: defaultLimit}
	query := r.URL.Query()

	if raw := query.Get("kind"); raw != "" {
		kind := audit.Kind(raw)
		switch kind {
		case audit.KindTierChange, audit.KindValidation, audit.KindSuggestionTransition:
			filter.Kind = &kind
		default:
			return nil, dErrors.New(dErrors.CodeBadRequest, "unknown audit record kind")
		}
	}
	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "since must be RFC3339")
		}
		filter.Since = &since
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return nil, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

// RecordResponse is the transport view of one audit record.
type RecordResponse struct {
	Seq           uint64 `json:"seq"`
	Kind          string `json:"kind"`
	Before        string `json:"before,omitempty"`
	After         string `json:"after"`
	Actor         string `json:"actor"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func toRecordResponse(record *audit.Record) *RecordResponse {
	resp := &RecordResponse{
		Seq:       record.Seq,
		Kind:      string(record.Kind),
		Before:    record.Before,
		After:     record.After,
		Actor:     string(record.Actor),
		Timestamp: record.Timestamp.Format(time.RFC3339),
	}
	if !record.CorrelationID.IsNil() {
		resp.CorrelationID = record.CorrelationID.String()
	}
	return resp
}
