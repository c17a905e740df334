// Package privacy implements the user data rights surface: a full export of
// everything held about a user and an explicit, user-driven erasure across
// the consent, suggestion, and audit stores. Erasure is the only path that
// removes audit records.
package privacy

import (
	"context"
	"log/slog"
	"time"

	"othello/internal/audit"
	consentmodels "othello/internal/consent/models"
	sugmodels "othello/internal/suggestion/models"
	sugstore "othello/internal/suggestion/store"
	id "othello/pkg/domain"
)

// ConsentRegistry is the slice of the consent service the privacy flows use.
type ConsentRegistry interface {
	ListTiers(ctx context.Context, userID id.UserID) ([]*consentmodels.TierGrant, error)
	Erase(ctx context.Context, userID id.UserID) error
}

// SuggestionLedger is the slice of the suggestion service the privacy flows use.
type SuggestionLedger interface {
	ListByUser(ctx context.Context, userID id.UserID, filter *sugstore.Filter) ([]*sugmodels.Suggestion, error)
	Erase(ctx context.Context, userID id.UserID) error
}

// Auditor is the slice of the audit publisher the privacy flows use.
type Auditor interface {
	Query(ctx context.Context, userID id.UserID, filter *audit.Filter) ([]*audit.Record, error)
	Erase(ctx context.Context, userID id.UserID) error
}

// Export is everything held about one user.
type Export struct {
	Tiers       []*consentmodels.TierGrant
	Suggestions []*sugmodels.Suggestion
	Records     []*audit.Record
	GeneratedAt time.Time
}

// Service aggregates per-domain reads and deletes into the two user data
// rights operations.
type Service struct {
	consent ConsentRegistry
	ledger  SuggestionLedger
	auditor Auditor
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(consent ConsentRegistry, ledger SuggestionLedger, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{
		consent: consent,
		ledger:  ledger,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
	}
}

// ExportData gathers the user's tier grants, full suggestion history, and
// audit trail.
func (s *Service) ExportData(ctx context.Context, userID id.UserID) (*Export, error) {
	tiers, err := s.consent.ListTiers(ctx, userID)
	if err != nil {
		return nil, err
	}
	suggestions, err := s.ledger.ListByUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	records, err := s.auditor.Query(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	return &Export{
		Tiers:       tiers,
		Suggestions: suggestions,
		Records:     records,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// EraseData removes the user's data from every store. Mutable state goes
// first and the audit trail last, so a partial failure leaves the trail
// documenting what the erased state looked like rather than orphaned state
// with no trail. The operation is idempotent; repeating it is a no-op.
func (s *Service) EraseData(ctx context.Context, userID id.UserID) error {
	if err := s.consent.Erase(ctx, userID); err != nil {
		return err
	}
	if err := s.ledger.Erase(ctx, userID); err != nil {
		return err
	}
	if err := s.auditor.Erase(ctx, userID); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "user data erased", "user_id", userID)
	}
	return nil
}
