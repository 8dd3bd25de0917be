package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/oakmart/checkout-engine/pkg/kafka"
	"github.com/oakmart/checkout-engine/pkg/logger"

	"github.com/oakmart/checkout-engine/internal/domain"
)

// Kafka topics for checkout lifecycle events. Consumers include order
// fulfillment and analytics; none of them sit on the checkout request path.
const (
	TopicSessionCreated   = "checkout.session.created"
	TopicSessionCompleted = "checkout.session.completed"
	TopicSessionExpired   = "checkout.session.expired"
	TopicSessionFailed    = "checkout.session.failed"
)

const aggregateType = "checkout_session"

// SessionEvent is the payload published for every lifecycle transition.
type SessionEvent struct {
	SessionID    string             `json:"session_id"`
	UserID       string             `json:"user_id"`
	Status       string             `json:"status"`
	Totals       domain.PriceTotals `json:"totals"`
	DiscountCode string             `json:"discount_code,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// Publisher emits checkout lifecycle events. Publishing is best-effort: a
// broker failure is logged and swallowed because the session transition has
// already been committed and must not be rolled back for telemetry.
type Publisher struct {
	producer *kafka.Producer
	source   string
	logger   *slog.Logger
}

func NewPublisher(producer *kafka.Producer, source string, log *slog.Logger) *Publisher {
	return &Publisher{producer: producer, source: source, logger: log}
}

func (p *Publisher) SessionCreated(ctx context.Context, s *domain.CheckoutSession) {
	p.publish(ctx, TopicSessionCreated, s, "")
}

func (p *Publisher) SessionCompleted(ctx context.Context, s *domain.CheckoutSession) {
	p.publish(ctx, TopicSessionCompleted, s, "")
}

func (p *Publisher) SessionExpired(ctx context.Context, s *domain.CheckoutSession) {
	p.publish(ctx, TopicSessionExpired, s, "")
}

func (p *Publisher) SessionFailed(ctx context.Context, s *domain.CheckoutSession, reason string) {
	p.publish(ctx, TopicSessionFailed, s, reason)
}

func (p *Publisher) publish(ctx context.Context, topic string, s *domain.CheckoutSession, reason string) {
	if p.producer == nil {
		return
	}
	payload := SessionEvent{
		SessionID:    s.ID,
		UserID:       s.UserID,
		Status:       s.Status,
		Totals:       s.Totals,
		DiscountCode: s.DiscountCode,
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	}
	evt, err := kafka.NewEvent(topic, s.ID, aggregateType, p.source, payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "building session event",
			slog.String("topic", topic),
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt = evt.WithCorrelationID(id)
	}
	if err := p.producer.Publish(ctx, topic, evt); err != nil {
		p.logger.ErrorContext(ctx, "publishing session event",
			slog.String("topic", topic),
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}
}
