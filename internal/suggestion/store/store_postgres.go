package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"othello/internal/policy"
	"othello/internal/suggestion/models"
	id "othello/pkg/domain"
)

// PostgresStore persists suggestions in PostgreSQL. The action payload and
// triggered rule ids are stored as JSONB; status-conditional updates give the
// single-writer guarantee per suggestion.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const suggestionColumns = `
	id, user_id, scope, conversation_id, action_id, description, action_type,
	payload, suggested_tier, outcome, required_tier, rule_ids, reasoning,
	confidence, evaluated_at, status, actionable, created_at, expires_at,
	responded_at, user_response, note
`

func (s *PostgresStore) Create(ctx context.Context, suggestion *models.Suggestion) error {
	payload, err := json.Marshal(suggestion.Action.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	ruleIDs, err := json.Marshal(suggestion.Result.RuleIDs)
	if err != nil {
		return fmt.Errorf("marshal rule ids: %w", err)
	}

	var suggestedTier sql.NullInt32
	if suggestion.Action.SuggestedTier != nil {
		suggestedTier = sql.NullInt32{Int32: int32(*suggestion.Action.SuggestedTier), Valid: true}
	}

	query := `
		INSERT INTO suggestions (` + suggestionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(suggestion.ID),
		uuid.UUID(suggestion.UserID),
		suggestion.Scope,
		uuid.UUID(suggestion.Action.ConversationID),
		uuid.UUID(suggestion.Action.ID),
		suggestion.Action.Description,
		string(suggestion.Action.Type),
		payload,
		suggestedTier,
		string(suggestion.Result.Outcome),
		int(suggestion.Result.RequiredTier),
		ruleIDs,
		suggestion.Result.Reasoning,
		suggestion.Result.Confidence,
		suggestion.Result.EvaluatedAt,
		string(suggestion.Status),
		suggestion.Actionable,
		suggestion.CreatedAt,
		suggestion.ExpiresAt,
		suggestion.RespondedAt,
		suggestion.UserResponse,
		suggestion.Note,
	)
	if err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, suggestionID id.SuggestionID) (*models.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id = $1`
	suggestion, err := scanSuggestion(s.db.QueryRowContext(ctx, query, uuid.UUID(suggestionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	return suggestion, nil
}

// Update writes the mutable lifecycle fields, conditional on the stored
// status still being expectedStatus. The immutable action and verdict
// columns are never touched.
func (s *PostgresStore) Update(ctx context.Context, suggestion *models.Suggestion, expectedStatus models.Status) error {
	query := `
		UPDATE suggestions
		SET status = $2, actionable = $3, responded_at = $4, user_response = $5, note = $6
		WHERE id = $1 AND status = $7
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(suggestion.ID),
		string(suggestion.Status),
		suggestion.Actionable,
		suggestion.RespondedAt,
		suggestion.UserResponse,
		suggestion.Note,
		string(expectedStatus),
	)
	if err != nil {
		return fmt.Errorf("update suggestion: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update suggestion rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM suggestions WHERE id = $1)`, uuid.UUID(suggestion.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("check suggestion exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, filter *Filter) ([]*models.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE user_id = $1`
	args := []any{uuid.UUID(userID)}

	if filter != nil {
		if filter.Status != "" {
			args = append(args, string(filter.Status))
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
		if filter.ActionableOnly {
			query += ` AND status = 'pending' AND actionable = TRUE`
		}
	}
	query += ` ORDER BY created_at DESC, id`
	if filter != nil {
		if filter.Limit > 0 {
			args = append(args, filter.Limit)
			query += fmt.Sprintf(" LIMIT $%d", len(args))
		}
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()
	return collectSuggestions(rows)
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Suggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM suggestions
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired suggestions: %w", err)
	}
	defer rows.Close()
	return collectSuggestions(rows)
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID id.UserID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM suggestions WHERE user_id = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete suggestions by user: %w", err)
	}
	return nil
}

type suggestionRow interface {
	Scan(dest ...any) error
}

func scanSuggestion(row suggestionRow) (*models.Suggestion, error) {
	var (
		suggestion     models.Suggestion
		suggestionID   uuid.UUID
		userID         uuid.UUID
		conversationID uuid.UUID
		actionID       uuid.UUID
		actionType     string
		payload        []byte
		suggestedTier  sql.NullInt32
		outcome        string
		requiredTier   int
		ruleIDs        []byte
		status         string
		respondedAt    sql.NullTime
	)
	err := row.Scan(
		&suggestionID,
		&userID,
		&suggestion.Scope,
		&conversationID,
		&actionID,
		&suggestion.Action.Description,
		&actionType,
		&payload,
		&suggestedTier,
		&outcome,
		&requiredTier,
		&ruleIDs,
		&suggestion.Result.Reasoning,
		&suggestion.Result.Confidence,
		&suggestion.Result.EvaluatedAt,
		&status,
		&suggestion.Actionable,
		&suggestion.CreatedAt,
		&suggestion.ExpiresAt,
		&respondedAt,
		&suggestion.UserResponse,
		&suggestion.Note,
	)
	if err != nil {
		return nil, err
	}

	suggestion.ID = id.SuggestionID(suggestionID)
	suggestion.UserID = id.UserID(userID)
	suggestion.Action.ID = id.ActionID(actionID)
	suggestion.Action.ConversationID = id.ConversationID(conversationID)
	suggestion.Action.Type = policy.ActionType(actionType)
	suggestion.Result.Outcome = policy.Outcome(outcome)
	suggestion.Result.RequiredTier = id.ConsentTier(requiredTier)
	suggestion.Status = models.Status(status)

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &suggestion.Action.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if len(ruleIDs) > 0 {
		if err := json.Unmarshal(ruleIDs, &suggestion.Result.RuleIDs); err != nil {
			return nil, fmt.Errorf("unmarshal rule ids: %w", err)
		}
	}
	if suggestedTier.Valid {
		tier := id.ConsentTier(suggestedTier.Int32)
		suggestion.Action.SuggestedTier = &tier
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		suggestion.RespondedAt = &t
	}
	return &suggestion, nil
}

func collectSuggestions(rows *sql.Rows) ([]*models.Suggestion, error) {
	var suggestions []*models.Suggestion
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, suggestion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, nil
}
