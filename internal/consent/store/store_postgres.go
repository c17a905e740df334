package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"othello/internal/consent/models"
	id "othello/pkg/domain"
)

// PostgresStore persists tier grants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID, scope models.Scope) (*models.TierGrant, error) {
	query := `
		SELECT user_id, scope, tier, version, updated_at
		FROM consent_tiers
		WHERE user_id = $1 AND scope = $2
	`
	grant, err := scanGrant(s.db.QueryRowContext(ctx, query, uuid.UUID(userID), string(scope)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tier grant: %w", err)
	}
	return grant, nil
}

func (s *PostgresStore) Save(ctx context.Context, grant *models.TierGrant) error {
	if grant == nil {
		return fmt.Errorf("tier grant is required")
	}
	if grant.Version == 1 {
		return s.insert(ctx, grant)
	}
	return s.update(ctx, grant)
}

func (s *PostgresStore) insert(ctx context.Context, grant *models.TierGrant) error {
	query := `
		INSERT INTO consent_tiers (user_id, scope, tier, version, updated_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, scope) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(grant.UserID),
		string(grant.Scope),
		int(grant.Tier),
		grant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tier grant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert tier grant rows: %w", err)
	}
	if rows == 0 {
		// Another writer created the row first; the caller re-reads and retries.
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) update(ctx context.Context, grant *models.TierGrant) error {
	query := `
		UPDATE consent_tiers
		SET tier = $3, version = $4, updated_at = $5
		WHERE user_id = $1 AND scope = $2 AND version = $6
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(grant.UserID),
		string(grant.Scope),
		int(grant.Tier),
		grant.Version,
		grant.UpdatedAt,
		grant.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update tier grant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tier grant rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.TierGrant, error) {
	query := `
		SELECT user_id, scope, tier, version, updated_at
		FROM consent_tiers
		WHERE user_id = $1
		ORDER BY scope
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list tier grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.TierGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tier grant: %w", err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tier grants: %w", err)
	}
	return grants, nil
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID id.UserID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM consent_tiers WHERE user_id = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete tier grants by user: %w", err)
	}
	return nil
}

type grantRow interface {
	Scan(dest ...any) error
}

func scanGrant(row grantRow) (*models.TierGrant, error) {
	var grant models.TierGrant
	var userID uuid.UUID
	var scope string
	var tier int
	if err := row.Scan(&userID, &scope, &tier, &grant.Version, &grant.UpdatedAt); err != nil {
		return nil, err
	}
	grant.UserID = id.UserID(userID)
	grant.Scope = models.Scope(scope)
	grant.Tier = id.ConsentTier(tier)
	return &grant, nil
}
