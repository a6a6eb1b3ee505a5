// Package natsutil provides typed NATS publish/subscribe helpers with
// OpenTelemetry trace propagation, and the search event publisher.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// SubjectSearchCompleted carries domain.SearchCompleted events.
const SubjectSearchCompleted = "search.completed"

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// MsgPublisher is the part of *nats.Conn used for publishing.
type MsgPublisher interface {
	PublishMsg(*nats.Msg) error
}

// Publish serializes v as JSON and publishes it to subject, injecting the
// trace context of ctx into the message headers.
func Publish[T any](ctx context.Context, nc MsgPublisher, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that receives JSON messages decoded as T,
// with the publisher's trace context. Malformed messages are logged and
// dropped.
func Subscribe[T any](nc *nats.Conn, subject string, log *slog.Logger, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, Handler(subject, log, handler))
}

// Handler builds the nats.MsgHandler used by Subscribe.
func Handler[T any](subject string, log *slog.Logger, handler func(context.Context, T)) nats.MsgHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			log.Warn("dropping malformed message", "subject", subject, "err", err)
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, v)
	}
}

// CompletedPublisher publishes finished searches on SubjectSearchCompleted.
type CompletedPublisher struct {
	nc      MsgPublisher
	subject string
}

// NewCompletedPublisher creates a publisher. An empty subject uses
// SubjectSearchCompleted.
func NewCompletedPublisher(nc MsgPublisher, subject string) *CompletedPublisher {
	if subject == "" {
		subject = SubjectSearchCompleted
	}
	return &CompletedPublisher{nc: nc, subject: subject}
}

func (p *CompletedPublisher) PublishCompleted(ctx context.Context, ev domain.SearchCompleted) error {
	if err := Publish(ctx, p.nc, p.subject, ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.SearchID, err)
	}
	return nil
}
