// Package outbox publishes intervention lifecycle events.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/fixlite/internal/intervention/domain"
)

// Publisher writes intervention events to a NATS subject. A nil connection
// makes publishing a no-op so single-binary deployments work without a
// broker.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher builds a Publisher on the given connection and subject.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Publish satisfies domain.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event domain.InterventionEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return p.conn.PublishMsg(&nats.Msg{Subject: p.subject, Data: payload, Header: map[string][]string{
		"x-trace-id":   {traceIDFromContext(ctx)},
		"x-event-type": {string(event.Type)},
	}})
}

func traceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Worker drains a durable event buffer through a publisher. Loader and
// Marker bracket one batch; storage specifics stay with the caller.
type Worker struct {
	Loader    func(ctx context.Context) ([]domain.InterventionEvent, error)
	Marker    func(ctx context.Context, events []domain.InterventionEvent) error
	Publisher domain.EventPublisher
}

// Run executes one drain cycle.
func (w *Worker) Run(ctx context.Context) error {
	events, err := w.Loader(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	for _, evt := range events {
		if err := w.Publisher.Publish(ctx, evt); err != nil {
			return err
		}
	}
	if err := w.Marker(ctx, events); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
