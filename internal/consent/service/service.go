package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"othello/internal/audit"
	"othello/internal/consent/metrics"
	"othello/internal/consent/models"
	"othello/internal/consent/store"
	id "othello/pkg/domain"
	pkgerrors "othello/pkg/domain-errors"
)

// Store defines the persistence interface for tier grants.
// Error Contract:
// - Get returns store.ErrNotFound when no grant exists
// - Save returns store.ErrVersionConflict when a conditional write loses a race
// - Other failures are wrapped infrastructure errors
type Store interface {
	Get(ctx context.Context, userID id.UserID, scope models.Scope) (*models.TierGrant, error)
	Save(ctx context.Context, grant *models.TierGrant) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.TierGrant, error)
	DeleteByUser(ctx context.Context, userID id.UserID) error
}

// TierCache is an optional read-through cache for resolved tiers.
type TierCache interface {
	Get(ctx context.Context, userID id.UserID, scope models.Scope) (id.ConsentTier, bool, error)
	Set(ctx context.Context, userID id.UserID, scope models.Scope, tier id.ConsentTier) error
	Invalidate(ctx context.Context, userID id.UserID, scope models.Scope) error
}

// Lookup resolution sources, used as metric labels.
const (
	lookupSourceCache   = "cache"
	lookupSourceScope   = "scope"
	lookupSourceGlobal  = "global"
	lookupSourceDefault = "default"
)

const saveRetries = 3

type Option func(*Service)

// Service is the consent registry: it owns the current tier per
// (user, scope) pair and audits every change before committing it.
type Service struct {
	store   Store
	auditor *audit.Publisher
	cache   TierCache
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store Store, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		auditor: auditor,
		logger:  logger,
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

// WithTierCache enables the read-through tier cache.
func WithTierCache(c TierCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// GetTier resolves the effective tier for a (user, scope) pair: the
// scope-specific grant, falling back to the global scope, falling back to
// the system default. Missing grants are not an error; only infrastructure
// failure surfaces one.
func (s *Service) GetTier(ctx context.Context, userID id.UserID, scope models.Scope) (id.ConsentTier, error) {
	if userID.IsNil() {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	if !scope.IsValid() {
		scope = models.ScopeGlobal
	}

	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveTierLookupLatency(time.Since(start).Seconds())
		}
	}()

	if s.cache != nil {
		tier, ok, err := s.cache.Get(ctx, userID, scope)
		if err != nil {
			s.logWarn(ctx, "tier cache read failed", "error", err, "scope", scope)
		} else if ok {
			s.incrementLookups(lookupSourceCache)
			return tier, nil
		}
	}

	tier, source, err := s.resolveTier(ctx, userID, scope)
	if err != nil {
		return 0, err
	}
	s.incrementLookups(source)

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, scope, tier); err != nil {
			s.logWarn(ctx, "tier cache write failed", "error", err, "scope", scope)
		}
	}
	return tier, nil
}

func (s *Service) resolveTier(ctx context.Context, userID id.UserID, scope models.Scope) (id.ConsentTier, string, error) {
	grant, err := s.store.Get(ctx, userID, scope)
	if err == nil {
		return grant.Tier, lookupSourceScope, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, "", pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "read tier grant")
	}

	if scope != models.ScopeGlobal {
		grant, err = s.store.Get(ctx, userID, models.ScopeGlobal)
		if err == nil {
			return grant.Tier, lookupSourceGlobal, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return 0, "", pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "read global tier grant")
		}
	}

	return id.DefaultTier, lookupSourceDefault, nil
}

// SetTier records a new consent tier for a (user, scope) pair. Raising the
// tier to autonomous requires the caller's explicit confirmation flag;
// without it the change is rejected with a policy violation so escalation is
// never accidental. The audit record is appended before the grant is saved:
// the grant write is the durable commit point, and a grant without its audit
// record can never exist.
func (s *Service) SetTier(ctx context.Context, userID id.UserID, scope models.Scope, newTier id.ConsentTier, actor audit.Actor, confirm bool) (*models.TierGrant, error) {
	if userID.IsNil() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	if !scope.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "scope must not be empty")
	}
	if !newTier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, fmt.Sprintf("invalid consent tier: %d", int(newTier)))
	}
	if newTier == id.TierAutonomous && !confirm {
		if s.metrics != nil {
			s.metrics.IncrementEscalationsRejected()
		}
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "raising to autonomous tier requires explicit confirmation")
	}

	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		grant, err := s.trySetTier(ctx, userID, scope, newTier, actor)
		if err == nil {
			return grant, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.IncrementVersionConflicts()
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(lastErr, pkgerrors.CodeConflict, "tier change lost update race repeatedly")
}

func (s *Service) trySetTier(ctx context.Context, userID id.UserID, scope models.Scope, newTier id.ConsentTier, actor audit.Actor) (*models.TierGrant, error) {
	now := s.now().UTC()

	previous := id.DefaultTier
	version := 1
	existing, err := s.store.Get(ctx, userID, scope)
	switch {
	case err == nil:
		previous = existing.Tier
		version = existing.Version + 1
	case errors.Is(err, store.ErrNotFound):
		// First grant for this scope.
	default:
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "read tier grant")
	}

	if existing != nil && existing.Tier == newTier {
		// Idempotent repeat: no state change, no duplicate audit record.
		return existing, nil
	}

	if err := s.auditor.Record(ctx, audit.Record{
		UserID:        userID,
		Kind:          audit.KindTierChange,
		Before:        fmt.Sprintf("%s:%s", scope, previous),
		After:         fmt.Sprintf("%s:%s", scope, newTier),
		Actor:         actor,
		CorrelationID: id.NewCorrelationID(),
		Timestamp:     now,
	}); err != nil {
		return nil, err
	}

	grant, err := models.NewTierGrant(userID, scope, newTier, now)
	if err != nil {
		return nil, err
	}
	grant.Version = version
	if err := s.store.Save(ctx, grant); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "save tier grant")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID, scope); err != nil {
			s.logWarn(ctx, "tier cache invalidation failed", "error", err, "scope", scope)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementTierChanges(string(scope), newTier.String())
	}
	s.logInfo(ctx, "consent tier changed",
		"user_id", userID,
		"scope", scope,
		"previous", previous.String(),
		"tier", newTier.String(),
		"actor", actor,
	)
	return grant, nil
}

// ListTiers returns every explicit grant the user holds. Scopes without a
// grant resolve through the global fallback and are not listed.
func (s *Service) ListTiers(ctx context.Context, userID id.UserID) ([]*models.TierGrant, error) {
	if userID.IsNil() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	grants, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "list tier grants")
	}
	return grants, nil
}

// Erase removes all grants for a user. Part of the user-driven erasure flow.
func (s *Service) Erase(ctx context.Context, userID id.UserID) error {
	if userID.IsNil() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "erase tier grants")
	}
	return nil
}

func (s *Service) incrementLookups(source string) {
	if s.metrics != nil {
		s.metrics.IncrementTierLookups(source)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}
