package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"othello/internal/audit"
	"othello/internal/policy"
	"othello/internal/suggestion/metrics"
	"othello/internal/suggestion/models"
	"othello/internal/suggestion/store"
	id "othello/pkg/domain"
	pkgerrors "othello/pkg/domain-errors"
	psync "othello/pkg/platform/sync"
)

// DefaultTTL is the approval window for a pending suggestion.
const DefaultTTL = 24 * time.Hour

const sweepBatchSize = 100

type Option func(*Service)

// Service is the suggestion ledger: the only component that mutates a
// suggestion's lifecycle state. Transitions follow the legal state machine,
// are serialized per suggestion id, and are audited before they commit.
type Service struct {
	store   store.Store
	auditor *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	locks   *psync.ShardedMutex
	ttl     time.Duration
	now     func() time.Time
}

func NewService(store store.Store, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		auditor: auditor,
		logger:  logger,
		locks:   psync.NewShardedMutex(),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTTL overrides the default approval window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Create records a freshly evaluated action as a suggestion. A blocked
// verdict lands directly in the terminal denied state: never actionable, but
// still persisted and audited so the decision is visible. Everything else
// starts pending; whether it is actionable depends on the verdict and the
// tier the user held at evaluation time.
func (s *Service) Create(ctx context.Context, userID id.UserID, scope string, action policy.ProposedAction, result policy.ValidationResult, granted id.ConsentTier) (*models.Suggestion, error) {
	if userID.IsNil() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	if result.Reasoning == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvariantViolation, "validation result has no reasoning")
	}

	now := s.now().UTC()
	suggestion := &models.Suggestion{
		ID:         id.NewSuggestionID(),
		UserID:     userID,
		Scope:      scope,
		Action:     action,
		Result:     result,
		Status:     models.StatusPending,
		Actionable: result.Actionable(granted),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if result.Outcome == policy.OutcomeBlocked {
		suggestion.Status = models.StatusDenied
		suggestion.Actionable = false
		respondedAt := now
		suggestion.RespondedAt = &respondedAt
	}

	if err := s.auditor.Record(ctx, audit.Record{
		UserID:        userID,
		Kind:          audit.KindValidation,
		Before:        "",
		After:         fmt.Sprintf("%s:%s", suggestion.Status, result.Outcome),
		Actor:         audit.ActorSystem,
		CorrelationID: suggestion.CorrelationID(),
		Timestamp:     now,
	}); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, suggestion); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "create suggestion")
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated(string(result.Outcome))
	}
	s.logInfo(ctx, "suggestion created",
		"suggestion_id", suggestion.ID,
		"user_id", userID,
		"scope", scope,
		"outcome", result.Outcome,
		"status", suggestion.Status,
		"actionable", suggestion.Actionable,
	)
	return suggestion, nil
}

// Get returns one suggestion by id.
func (s *Service) Get(ctx context.Context, suggestionID id.SuggestionID) (*models.Suggestion, error) {
	suggestion, err := s.store.Get(ctx, suggestionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "get suggestion")
	}
	return suggestion, nil
}

// ListByUser returns a user's suggestions, newest-first.
func (s *Service) ListByUser(ctx context.Context, userID id.UserID, filter *store.Filter) ([]*models.Suggestion, error) {
	if userID.IsNil() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	suggestions, err := s.store.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "list suggestions")
	}
	return suggestions, nil
}

// Respond applies a user's approve or deny decision. The optional response
// text carries feedback on approve or a reason on deny. Only legal from
// pending. Repeating the same decision is idempotent and appends no second
// audit record, keeping the first response text; a conflicting repeat is
// rejected as an illegal transition with the state left unchanged.
func (s *Service) Respond(ctx context.Context, suggestionID id.SuggestionID, decision models.Decision, response string, actor audit.Actor) (*models.Suggestion, error) {
	if !decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "decision must be approve or deny")
	}

	var result *models.Suggestion
	var resultErr error
	s.locks.Do(suggestionID.String(), func() {
		result, resultErr = s.respondLocked(ctx, suggestionID, decision, response, actor)
	})
	return result, resultErr
}

func (s *Service) respondLocked(ctx context.Context, suggestionID id.SuggestionID, decision models.Decision, response string, actor audit.Actor) (*models.Suggestion, error) {
	suggestion, err := s.Get(ctx, suggestionID)
	if err != nil {
		return nil, err
	}

	target := decision.Status()
	if suggestion.Status == target {
		return suggestion, nil
	}
	if !suggestion.Status.CanTransitionTo(target) {
		return nil, s.illegalTransition(suggestion.Status, target)
	}

	now := s.now().UTC()
	from := suggestion.Status
	suggestion.Status = target
	suggestion.RespondedAt = &now
	suggestion.UserResponse = response
	if err := s.commitTransition(ctx, suggestion, from, actor, now); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveDecisionLatency(now.Sub(suggestion.CreatedAt).Seconds())
	}
	return suggestion, nil
}

// MarkExecuted records that an approved suggestion's action completed. The
// note carries the execution result for display and audit.
func (s *Service) MarkExecuted(ctx context.Context, suggestionID id.SuggestionID, note string) (*models.Suggestion, error) {
	return s.finish(ctx, suggestionID, models.StatusExecuted, note)
}

// MarkFailed records that an approved suggestion's action failed.
func (s *Service) MarkFailed(ctx context.Context, suggestionID id.SuggestionID, note string) (*models.Suggestion, error) {
	return s.finish(ctx, suggestionID, models.StatusFailed, note)
}

func (s *Service) finish(ctx context.Context, suggestionID id.SuggestionID, target models.Status, note string) (*models.Suggestion, error) {
	var result *models.Suggestion
	var resultErr error
	s.locks.Do(suggestionID.String(), func() {
		result, resultErr = s.finishLocked(ctx, suggestionID, target, note)
	})
	return result, resultErr
}

func (s *Service) finishLocked(ctx context.Context, suggestionID id.SuggestionID, target models.Status, note string) (*models.Suggestion, error) {
	suggestion, err := s.Get(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.Status == target {
		return suggestion, nil
	}
	if !suggestion.Status.CanTransitionTo(target) {
		return nil, s.illegalTransition(suggestion.Status, target)
	}

	now := s.now().UTC()
	from := suggestion.Status
	suggestion.Status = target
	suggestion.Note = note
	if err := s.commitTransition(ctx, suggestion, from, audit.ActorSystem, now); err != nil {
		return nil, err
	}
	return suggestion, nil
}

// Recheck re-derives whether a pending suggestion is actionable under the
// tier the user holds now. The stored verdict is never altered; only the
// actionable flag moves. Called after a tier change instead of a background
// re-evaluation trigger.
func (s *Service) Recheck(ctx context.Context, suggestionID id.SuggestionID, granted id.ConsentTier) (*models.Suggestion, error) {
	var result *models.Suggestion
	var resultErr error
	s.locks.Do(suggestionID.String(), func() {
		result, resultErr = s.recheckLocked(ctx, suggestionID, granted)
	})
	return result, resultErr
}

func (s *Service) recheckLocked(ctx context.Context, suggestionID id.SuggestionID, granted id.ConsentTier) (*models.Suggestion, error) {
	suggestion, err := s.Get(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.Status != models.StatusPending {
		return suggestion, nil
	}

	actionable := suggestion.Result.Actionable(granted) && !suggestion.ExpiredAt(s.now().UTC())
	if actionable == suggestion.Actionable {
		return suggestion, nil
	}

	suggestion.Actionable = actionable
	if err := s.store.Update(ctx, suggestion, models.StatusPending); err != nil {
		if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "update suggestion")
	}
	s.logInfo(ctx, "suggestion rechecked",
		"suggestion_id", suggestion.ID,
		"actionable", actionable,
		"granted_tier", granted,
	)
	return suggestion, nil
}

// SweepExpired moves every pending suggestion past its expiry to expired.
// Runs as a periodic background pass; a second sweep over the same set is a
// no-op because expired is terminal.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	start := s.now()
	swept := 0
	for {
		expired, err := s.store.ListExpired(ctx, s.now().UTC(), sweepBatchSize)
		if err != nil {
			return swept, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "list expired suggestions")
		}
		if len(expired) == 0 {
			break
		}
		progressed := 0
		for _, suggestion := range expired {
			if err := ctx.Err(); err != nil {
				return swept, err
			}
			if err := s.expireOne(ctx, suggestion.ID); err != nil {
				s.logWarn(ctx, "expire suggestion failed", "error", err, "suggestion_id", suggestion.ID)
				continue
			}
			swept++
			progressed++
		}
		if len(expired) < sweepBatchSize {
			break
		}
		// A pass that expired nothing leaves the pending set unchanged, so
		// the next listing would return the same rows. Stop and let the next
		// scheduled sweep retry them.
		if progressed == 0 {
			break
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveSweepDuration(time.Since(start).Seconds())
	}
	return swept, nil
}

func (s *Service) expireOne(ctx context.Context, suggestionID id.SuggestionID) error {
	var resultErr error
	s.locks.Do(suggestionID.String(), func() {
		resultErr = s.expireLocked(ctx, suggestionID)
	})
	return resultErr
}

func (s *Service) expireLocked(ctx context.Context, suggestionID id.SuggestionID) error {
	suggestion, err := s.Get(ctx, suggestionID)
	if err != nil {
		return err
	}
	// Re-read under the lock: a response may have won the race.
	if !suggestion.ExpiredAt(s.now().UTC()) {
		return nil
	}

	now := s.now().UTC()
	from := suggestion.Status
	suggestion.Status = models.StatusExpired
	suggestion.Actionable = false
	if err := s.commitTransition(ctx, suggestion, from, audit.ActorSystem, now); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementExpired()
	}
	return nil
}

// Erase removes all suggestions for a user. Part of the user-driven erasure
// flow.
func (s *Service) Erase(ctx context.Context, userID id.UserID) error {
	if userID.IsNil() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "erase suggestions")
	}
	return nil
}

// commitTransition appends the audit record and then performs the
// status-conditional write. The write is the commit point; a suggestion
// state change without its audit record can never exist.
func (s *Service) commitTransition(ctx context.Context, suggestion *models.Suggestion, from models.Status, actor audit.Actor, now time.Time) error {
	if err := s.auditor.Record(ctx, audit.Record{
		UserID:        suggestion.UserID,
		Kind:          audit.KindSuggestionTransition,
		Before:        string(from),
		After:         string(suggestion.Status),
		Actor:         actor,
		CorrelationID: suggestion.CorrelationID(),
		Timestamp:     now,
	}); err != nil {
		return err
	}

	if err := s.store.Update(ctx, suggestion, from); err != nil {
		switch {
		case errors.Is(err, store.ErrStatusConflict):
			return s.illegalTransition(from, suggestion.Status)
		case errors.Is(err, store.ErrNotFound):
			return err
		default:
			return pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "update suggestion")
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementTransitions(string(from), string(suggestion.Status))
	}
	s.logInfo(ctx, "suggestion transitioned",
		"suggestion_id", suggestion.ID,
		"from", from,
		"to", suggestion.Status,
		"actor", actor,
	)
	return nil
}

func (s *Service) illegalTransition(current, attempted models.Status) error {
	if s.metrics != nil {
		s.metrics.IncrementIllegalTransitions()
	}
	return pkgerrors.New(pkgerrors.CodeIllegalTransition,
		fmt.Sprintf("cannot transition suggestion from '%s' to '%s'", current, attempted))
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
