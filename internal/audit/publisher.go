package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink receives a copy of every stored event, best effort. The Kafka sink
// implements this; tests use hand-rolled fakes.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

// Publisher appends events to the store and fans them out to an optional
// sink. It fills in ID and Timestamp defaults so call sites stay small.
type Publisher struct {
	store Store
	sink  Sink
	log   *slog.Logger
}

func NewPublisher(store Store, sink Sink, log *slog.Logger) *Publisher {
	return &Publisher{store: store, sink: sink, log: log}
}

// Emit records an event. Storage errors are logged and swallowed: the audit
// trail must never take the pipeline down with it.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.log.ErrorContext(ctx, "audit append failed",
			"action", string(event.Action),
			"certificate_id", event.CertificateID,
			"error", err.Error(),
		)
	}
	if p.sink != nil {
		p.sink.Publish(ctx, event)
	}
}

// List returns the trail for one certificate, oldest first.
func (p *Publisher) List(ctx context.Context, certificateID string) ([]Event, error) {
	return p.store.ListByCertificate(ctx, certificateID)
}
