package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "othello/pkg/domain"
	pkgerrors "othello/pkg/domain-errors"
)

// Sink receives a copy of every committed audit record. Sinks are
// best-effort fan-out targets (Kafka, log shippers); the primary store is
// the durability contract.
type Sink interface {
	Publish(ctx context.Context, record Record) error
}

// Publisher writes audit records. The primary store append is synchronous so
// callers can rely on audit-before-commit ordering: a state change is only
// committed after its audit record is durably appended. Secondary sinks are
// notified asynchronously and may lose records on crash.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
	wg     sync.WaitGroup
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithSink adds a best-effort fan-out sink.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithLogger sets a logger for sink error reporting.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Record appends the record to the primary store and fans it out. The store
// append is the commit point; a failure here must stop the caller's state
// change from proceeding.
func (p *Publisher) Record(ctx context.Context, record Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if err := p.store.Append(ctx, &record); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "append audit record")
	}

	for _, sink := range p.sinks {
		p.wg.Add(1)
		go func(sink Sink, record Record) {
			defer p.wg.Done()
			// Detached from the request context; fan-out outlives the request.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sink.Publish(ctx, record); err != nil && p.logger != nil {
				p.logger.Warn("audit sink publish failed",
					"error", err,
					"kind", record.Kind,
					"user_id", record.UserID,
					"seq", record.Seq,
				)
			}
		}(sink, record)
	}
	return nil
}

// Close blocks until every in-flight sink publish has finished. Call during
// graceful shutdown, after the last Record.
func (p *Publisher) Close() {
	p.wg.Wait()
}

// Query returns audit records for a user, newest-first.
func (p *Publisher) Query(ctx context.Context, userID id.UserID, filter *Filter) ([]*Record, error) {
	records, err := p.store.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "query audit records")
	}
	return records, nil
}

// Erase removes all audit records for a user. Only valid for explicit
// user-driven erasure requests.
func (p *Publisher) Erase(ctx context.Context, userID id.UserID) error {
	if err := p.store.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeStorageUnavailable, "erase audit records")
	}
	return nil
}
