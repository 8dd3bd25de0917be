package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"

	"github.com/oakmart/checkout-engine/internal/coupon"
	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/event"
	"github.com/oakmart/checkout-engine/internal/pricing"
	"github.com/oakmart/checkout-engine/internal/repository"
)

// SessionTTL is the fixed lifetime of a pending checkout session.
const SessionTTL = 30 * time.Minute

// sweepBatchSize caps how many overdue sessions one sweep pass processes.
const sweepBatchSize = 100

// CreateSessionInput carries everything needed to open a checkout session.
type CreateSessionInput struct {
	UserID          string
	Items           []domain.CartItemSnapshot
	CouponCode      string
	ShippingAddress *domain.Address
	BillingAddress  *domain.Address
}

// CheckoutService owns the checkout session lifecycle. A session is priced
// and frozen at creation, then moves from PENDING to exactly one of
// COMPLETED, EXPIRED or FAILED; terminal states accept no further
// transitions.
type CheckoutService struct {
	sessions   repository.SessionRepository
	calculator *pricing.Calculator
	ledger     *coupon.Ledger
	events     *event.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewCheckoutService(
	sessions repository.SessionRepository,
	calculator *pricing.Calculator,
	ledger *coupon.Ledger,
	events *event.Publisher,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		sessions:   sessions,
		calculator: calculator,
		ledger:     ledger,
		events:     events,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Preview prices a cart without creating a session or consuming coupon
// usage.
func (s *CheckoutService) Preview(ctx context.Context, input CreateSessionInput) (*pricing.OrderPreview, error) {
	return s.calculator.Preview(ctx, pricing.Request{
		UserID:          input.UserID,
		Items:           input.Items,
		CouponCode:      input.CouponCode,
		ShippingAddress: input.ShippingAddress,
	})
}

// Create prices the cart with strict coupon redemption, freezes the
// snapshot and totals into a new PENDING session and persists it. If the
// session cannot be persisted after a coupon was redeemed, the redemption
// is released so the failed attempt does not burn promotional capacity.
func (s *CheckoutService) Create(ctx context.Context, input CreateSessionInput) (*domain.CheckoutSession, error) {
	priced, err := s.calculator.PriceAndRedeem(ctx, pricing.Request{
		UserID:          input.UserID,
		Items:           input.Items,
		CouponCode:      input.CouponCode,
		ShippingAddress: input.ShippingAddress,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.CheckoutSession{
		ID:              uuid.New().String(),
		UserID:          input.UserID,
		Status:          domain.StatusPending,
		Items:           priced.Items,
		Totals:          priced.Totals,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		ExpiresAt:       now.Add(SessionTTL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if priced.Coupon != nil {
		session.DiscountCode = priced.Coupon.Code
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		if session.DiscountCode != "" {
			if relErr := s.ledger.Release(ctx, session.DiscountCode); relErr != nil {
				s.logger.ErrorContext(ctx, "releasing coupon after failed session create",
					slog.String("code", session.DiscountCode),
					slog.String("error", relErr.Error()),
				)
			}
		}
		return nil, fmt.Errorf("persisting checkout session: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", session.ID),
		slog.String("user_id", session.UserID),
		slog.Float64("total", session.Totals.Total),
	)
	s.events.SessionCreated(ctx, session)
	return session, nil
}

// Get loads a session by id.
func (s *CheckoutService) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return s.sessions.GetByID(ctx, id)
}

// Complete moves a PENDING session to COMPLETED, recording the payment
// intent. A session already past its expiry is first moved to EXPIRED and
// the call fails with a session-expired error rather than an invalid
// transition.
func (s *CheckoutService) Complete(ctx context.Context, id, paymentIntentID string) (*domain.CheckoutSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusPending {
		return nil, apperrors.InvalidTransition(session.Status)
	}
	if s.now().After(session.ExpiresAt) {
		if err := s.expireSession(ctx, session); err != nil {
			return nil, err
		}
		return nil, apperrors.SessionExpired(id)
	}

	now := s.now()
	session.Status = domain.StatusCompleted
	session.PaymentIntentID = paymentIntentID
	session.CompletedAt = &now
	session.UpdatedAt = now
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("completing session %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "checkout session completed",
		slog.String("session_id", id),
		slog.String("payment_intent_id", paymentIntentID),
	)
	s.events.SessionCompleted(ctx, session)
	return session, nil
}

// Expire moves a PENDING session to EXPIRED and returns any redeemed coupon
// to the pool. Expiring an already-EXPIRED session is a no-op.
func (s *CheckoutService) Expire(ctx context.Context, id string) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch session.Status {
	case domain.StatusExpired:
		return nil
	case domain.StatusPending:
		return s.expireSession(ctx, session)
	default:
		return apperrors.InvalidTransition(session.Status)
	}
}

func (s *CheckoutService) expireSession(ctx context.Context, session *domain.CheckoutSession) error {
	session.Status = domain.StatusExpired
	session.UpdatedAt = s.now()
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("expiring session %s: %w", session.ID, err)
	}
	if session.DiscountCode != "" {
		if err := s.ledger.Release(ctx, session.DiscountCode); err != nil {
			s.logger.ErrorContext(ctx, "releasing coupon for expired session",
				slog.String("session_id", session.ID),
				slog.String("code", session.DiscountCode),
				slog.String("error", err.Error()),
			)
		}
	}
	s.logger.InfoContext(ctx, "checkout session expired", slog.String("session_id", session.ID))
	s.events.SessionExpired(ctx, session)
	return nil
}

// Fail moves a PENDING session to FAILED. The coupon is deliberately not
// released: a failed payment still consumes the promotional allotment.
func (s *CheckoutService) Fail(ctx context.Context, id, reason string) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != domain.StatusPending {
		return apperrors.InvalidTransition(session.Status)
	}

	session.Status = domain.StatusFailed
	session.FailureReason = reason
	session.UpdatedAt = s.now()
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failing session %s: %w", id, err)
	}

	s.logger.WarnContext(ctx, "checkout session failed",
		slog.String("session_id", id),
		slog.String("reason", reason),
	)
	s.events.SessionFailed(ctx, session, reason)
	return nil
}

// ExpireDue expires every PENDING session past its deadline, in batches.
// Intended for a periodic sweeper; each session failure is logged and the
// sweep continues.
func (s *CheckoutService) ExpireDue(ctx context.Context) (int, error) {
	sessions, err := s.sessions.ListExpired(ctx, s.now(), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing overdue sessions: %w", err)
	}

	expired := 0
	for _, session := range sessions {
		if err := s.expireSession(ctx, session); err != nil {
			s.logger.ErrorContext(ctx, "sweeping overdue session",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expired overdue sessions", slog.Int("count", expired))
	}
	return expired, nil
}
