// Package gate orchestrates the consent pipeline: it takes candidate actions
// from the upstream reasoner, resolves the user's tier, runs each action
// through the policy engine, persists the verdicts as suggestions, and
// returns the full set tagged so callers can separate actionable from
// informational.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"othello/internal/audit"
	consentmodels "othello/internal/consent/models"
	"othello/internal/gate/tracer"
	"othello/internal/policy"
	sugmodels "othello/internal/suggestion/models"
	id "othello/pkg/domain"
	pkgerrors "othello/pkg/domain-errors"
)

// DefaultParallelism bounds concurrent evaluations within one batch.
const DefaultParallelism = 8

const (
	persistMaxTries   = 4
	persistMaxElapsed = 5 * time.Second
)

// Fate tells the caller what durably happened to an action. An action whose
// persistence failed after retries is Unknown, never silently dropped and
// never assumed blocked or passed.
type Fate string

const (
	FateRecorded Fate = "recorded"
	FateUnknown  Fate = "unknown"
)

// BatchItem is the per-action outcome of a batch submission.
type BatchItem struct {
	Action     policy.ProposedAction
	Suggestion *sugmodels.Suggestion
	Fate       Fate
	Err        error
}

// ConsentRegistry resolves the user's current tier per scope.
type ConsentRegistry interface {
	GetTier(ctx context.Context, userID id.UserID, scope consentmodels.Scope) (id.ConsentTier, error)
}

// Engine evaluates one action. Pure; safe to call concurrently.
type Engine interface {
	Evaluate(action policy.ProposedAction, ctx policy.UserContext) policy.ValidationResult
}

// Ledger is the slice of the suggestion service the coordinator drives.
type Ledger interface {
	Create(ctx context.Context, userID id.UserID, scope string, action policy.ProposedAction, result policy.ValidationResult, granted id.ConsentTier) (*sugmodels.Suggestion, error)
	Get(ctx context.Context, suggestionID id.SuggestionID) (*sugmodels.Suggestion, error)
	Respond(ctx context.Context, suggestionID id.SuggestionID, decision sugmodels.Decision, response string, actor audit.Actor) (*sugmodels.Suggestion, error)
	Recheck(ctx context.Context, suggestionID id.SuggestionID, granted id.ConsentTier) (*sugmodels.Suggestion, error)
}

type Option func(*Coordinator)

// Coordinator wires the registry, engine, and ledger into the batch flow.
type Coordinator struct {
	consent     ConsentRegistry
	engine      Engine
	ledger      Ledger
	logger      *slog.Logger
	tracer      tracer.Tracer
	parallelism int
}

func NewCoordinator(consent ConsentRegistry, engine Engine, ledger Ledger, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		consent:     consent,
		engine:      engine,
		ledger:      ledger,
		logger:      logger,
		tracer:      tracer.NewNoop(),
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTracer sets the tracer for batch spans.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithParallelism bounds concurrent evaluations per batch.
func WithParallelism(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// SubmitBatch runs every action through the pipeline. Actions are evaluated
// independently: no action's verdict depends on another's, so the batch runs
// in parallel, and one action's infrastructure failure never poisons the
// rest. Cancelling ctx stops issuing further evaluations; already persisted
// actions are not rolled back.
//
// The returned slice is index-aligned with actions and includes blocked and
// filtered items: a blocked verdict is a first-class explained decision, not
// an error.
func (c *Coordinator) SubmitBatch(ctx context.Context, userID id.UserID, actions []policy.ProposedAction) ([]BatchItem, error) {
	if userID.IsNil() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}

	ctx, span := c.tracer.Start(ctx, tracer.SpanSubmitBatch,
		tracer.Int64(tracer.AttrBatchSize, int64(len(actions))))
	var spanErr error
	defer func() { span.End(spanErr) }()

	items := make([]BatchItem, len(actions))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)

	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			// Abandoned mid-batch: unsubmitted actions report Unknown.
			for j := i; j < len(actions); j++ {
				items[j] = BatchItem{Action: actions[j], Fate: FateUnknown, Err: err}
			}
			break
		}
		g.Go(func() error {
			items[i] = c.processOne(groupCtx, userID, action)
			return nil
		})
	}
	_ = g.Wait()

	unknown := 0
	for _, item := range items {
		if item.Fate == FateUnknown {
			unknown++
		}
	}
	if unknown > 0 {
		c.logWarn(ctx, "batch finished with unresolved actions",
			"user_id", userID,
			"total", len(actions),
			"unknown", unknown,
		)
	}
	return items, nil
}

func (c *Coordinator) processOne(ctx context.Context, userID id.UserID, action policy.ProposedAction) BatchItem {
	scope := scopeForAction(action)
	ctx, span := c.tracer.Start(ctx, tracer.SpanEvaluate,
		tracer.String(tracer.AttrActionType, string(action.Type)),
		tracer.String(tracer.AttrScope, string(scope)),
	)
	item := BatchItem{Action: action, Fate: FateUnknown}
	defer func() { span.End(item.Err) }()

	granted, err := c.getTierWithRetry(ctx, userID, scope)
	if err != nil {
		item.Err = err
		c.logWarn(ctx, "tier resolution failed, action fate unknown",
			"error", err, "user_id", userID, "action_id", action.ID)
		return item
	}
	span.SetAttributes(tracer.String(tracer.AttrGrantedTier, granted.String()))

	result := c.engine.Evaluate(action, policy.UserContext{
		UserID:      userID,
		Scope:       string(scope),
		GrantedTier: granted,
	})
	span.SetAttributes(
		tracer.String(tracer.AttrOutcome, string(result.Outcome)),
		tracer.String(tracer.AttrRequiredTier, result.RequiredTier.String()),
	)

	suggestion, err := c.persistWithRetry(ctx, userID, scope, action, result, granted)
	if err != nil {
		item.Err = err
		span.SetAttributes(tracer.String(tracer.AttrFate, string(FateUnknown)))
		c.logWarn(ctx, "persisting evaluated action failed, fate unknown",
			"error", err, "user_id", userID, "action_id", action.ID, "outcome", result.Outcome)
		return item
	}

	span.AddEvent(tracer.EventSuggestionPersisted,
		tracer.String(tracer.AttrFate, string(FateRecorded)))
	item.Suggestion = suggestion
	item.Fate = FateRecorded
	return item
}

// getTierWithRetry reads the tier, retrying only transient storage failure.
func (c *Coordinator) getTierWithRetry(ctx context.Context, userID id.UserID, scope consentmodels.Scope) (id.ConsentTier, error) {
	return backoff.Retry(ctx, func() (id.ConsentTier, error) {
		tier, err := c.consent.GetTier(ctx, userID, scope)
		if err != nil && !pkgerrors.IsRetryable(err) {
			return 0, backoff.Permanent(err)
		}
		return tier, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(persistMaxTries),
		backoff.WithMaxElapsedTime(persistMaxElapsed),
	)
}

// persistWithRetry writes the suggestion, retrying transient storage failure
// a bounded number of times. An already-classified action is never silently
// dropped: persistent failure surfaces as an Unknown fate to the caller.
func (c *Coordinator) persistWithRetry(ctx context.Context, userID id.UserID, scope consentmodels.Scope, action policy.ProposedAction, result policy.ValidationResult, granted id.ConsentTier) (*sugmodels.Suggestion, error) {
	return backoff.Retry(ctx, func() (*sugmodels.Suggestion, error) {
		suggestion, err := c.ledger.Create(ctx, userID, string(scope), action, result, granted)
		if err != nil && !pkgerrors.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return suggestion, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(persistMaxTries),
		backoff.WithMaxElapsedTime(persistMaxElapsed),
	)
}

// Respond forwards a user decision to the ledger after verifying ownership.
func (c *Coordinator) Respond(ctx context.Context, userID id.UserID, suggestionID id.SuggestionID, decision sugmodels.Decision, response string) (*sugmodels.Suggestion, error) {
	if _, err := c.ownedSuggestion(ctx, userID, suggestionID); err != nil {
		return nil, err
	}
	return c.ledger.Respond(ctx, suggestionID, decision, response, audit.ActorUser)
}

// Recheck re-derives a suggestion's actionable flag under the user's current
// tier. Called after a tier raise; the stored verdict is never re-evaluated.
func (c *Coordinator) Recheck(ctx context.Context, userID id.UserID, suggestionID id.SuggestionID) (*sugmodels.Suggestion, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanRecheck)
	var spanErr error
	defer func() { span.End(spanErr) }()

	suggestion, err := c.ownedSuggestion(ctx, userID, suggestionID)
	if err != nil {
		spanErr = err
		return nil, err
	}

	granted, err := c.consent.GetTier(ctx, userID, consentmodels.Scope(suggestion.Scope))
	if err != nil {
		spanErr = err
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrGrantedTier, granted.String()))

	rechecked, err := c.ledger.Recheck(ctx, suggestionID, granted)
	if err != nil {
		spanErr = err
		return nil, err
	}
	return rechecked, nil
}

func (c *Coordinator) ownedSuggestion(ctx context.Context, userID id.UserID, suggestionID id.SuggestionID) (*sugmodels.Suggestion, error) {
	suggestion, err := c.ledger.Get(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "suggestion not found")
	}
	return suggestion, nil
}

// scopeForAction maps an action type to the consent scope that governs it.
// Types without a dedicated scope fall under the global tier.
func scopeForAction(action policy.ProposedAction) consentmodels.Scope {
	switch action.Type {
	case policy.ActionScheduling:
		return consentmodels.ScopeScheduling
	case policy.ActionCommunication:
		return consentmodels.ScopeCommunication
	default:
		return consentmodels.ScopeGlobal
	}
}

func (c *Coordinator) logWarn(ctx context.Context, msg string, args ...any) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, args...)
	}
}
