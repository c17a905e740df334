package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "othello/pkg/domain"
)

// PostgresStore persists audit records in PostgreSQL. The per-user sequence
// is assigned inside the insert so concurrent writers for the same user
// never collide: the primary key (user_id, seq) makes a duplicate assignment
// fail and retry rather than silently interleave.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const appendRetries = 3

func (s *PostgresStore) Append(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("audit record is required")
	}
	query := `
		INSERT INTO audit_records (user_id, seq, kind, before_value, after_value, actor, correlation_id, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6, $7
		FROM audit_records WHERE user_id = $1
		RETURNING seq
	`
	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		var seq uint64
		err := s.db.QueryRowContext(ctx, query,
			uuid.UUID(record.UserID),
			string(record.Kind),
			record.Before,
			record.After,
			string(record.Actor),
			uuid.UUID(record.CorrelationID),
			record.Timestamp,
		).Scan(&seq)
		if err == nil {
			record.Seq = seq
			return nil
		}
		// Unique violation on (user_id, seq) means a concurrent writer won
		// the same slot; recompute and retry.
		if !isUniqueViolation(err) {
			return fmt.Errorf("append audit record: %w", err)
		}
		lastErr = err
	}
	return fmt.Errorf("append audit record after %d attempts: %w", appendRetries, lastErr)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, filter *Filter) ([]*Record, error) {
	query := `
		SELECT user_id, seq, kind, before_value, after_value, actor, correlation_id, created_at
		FROM audit_records
		WHERE user_id = $1
	`
	args := []any{uuid.UUID(userID)}
	if filter != nil && filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter != nil && filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY seq DESC"
	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter != nil && filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID id.UserID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_records WHERE user_id = $1`,
		uuid.UUID(userID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID id.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_records WHERE user_id = $1`,
		uuid.UUID(userID),
	)
	if err != nil {
		return fmt.Errorf("erase audit records: %w", err)
	}
	return nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*Record, error) {
	var record Record
	var userID, correlationID uuid.UUID
	var kind, actor string
	if err := row.Scan(&userID, &record.Seq, &kind, &record.Before, &record.After, &actor, &correlationID, &record.Timestamp); err != nil {
		return nil, err
	}
	record.UserID = id.UserID(userID)
	record.Kind = Kind(kind)
	record.Actor = Actor(actor)
	record.CorrelationID = id.CorrelationID(correlationID)
	return &record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
