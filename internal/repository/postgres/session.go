package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"

	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/repository"
)

// SessionRepository is the Postgres-backed checkout session store. The cart
// snapshot and addresses are stored as JSONB because they are frozen at
// creation and only ever read back whole.
type SessionRepository struct {
	db DB
}

func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) Create(ctx context.Context, s *domain.CheckoutSession) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}
	shippingAddr, err := marshalAddress(s.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	billingAddr, err := marshalAddress(s.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}

	query := `
		INSERT INTO checkout_sessions (
			id, user_id, status, items, subtotal, tax, shipping_cost,
			discount, total, discount_code, shipping_address, billing_address,
			payment_intent_id, failure_reason, expires_at, completed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.Exec(ctx, query,
		s.ID, s.UserID, s.Status, items,
		s.Totals.Subtotal, s.Totals.Tax, s.Totals.ShippingCost,
		s.Totals.Discount, s.Totals.Total,
		nullableString(s.DiscountCode), shippingAddr, billingAddr,
		nullableString(s.PaymentIntentID), nullableString(s.FailureReason),
		s.ExpiresAt, s.CompletedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("checkout session", "id", s.ID)
		}
		return fmt.Errorf("inserting checkout session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	query := sessionSelect + ` WHERE id = $1`
	row := r.db.QueryRow(ctx, query, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("checkout session", id)
		}
		return nil, fmt.Errorf("querying checkout session: %w", err)
	}
	return s, nil
}

// Update persists the mutable session fields. The cart snapshot and totals
// are immutable after creation and deliberately excluded.
func (r *SessionRepository) Update(ctx context.Context, s *domain.CheckoutSession) error {
	query := `
		UPDATE checkout_sessions
		SET status = $2, payment_intent_id = $3, failure_reason = $4,
		    completed_at = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		s.ID, s.Status,
		nullableString(s.PaymentIntentID), nullableString(s.FailureReason),
		s.CompletedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating checkout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("checkout session", s.ID)
	}
	return nil
}

func (r *SessionRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.CheckoutSession, error) {
	query := sessionSelect + `
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, domain.StatusPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("querying expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expired session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expired sessions: %w", err)
	}
	return sessions, nil
}

const sessionSelect = `
	SELECT id, user_id, status, items, subtotal, tax, shipping_cost,
	       discount, total, discount_code, shipping_address, billing_address,
	       payment_intent_id, failure_reason, expires_at, completed_at,
	       created_at, updated_at
	FROM checkout_sessions`

func scanSession(row pgx.Row) (*domain.CheckoutSession, error) {
	var (
		s            domain.CheckoutSession
		items        []byte
		shippingAddr []byte
		billingAddr  []byte
		discountCode *string
		paymentID    *string
		failure      *string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.Status, &items,
		&s.Totals.Subtotal, &s.Totals.Tax, &s.Totals.ShippingCost,
		&s.Totals.Discount, &s.Totals.Total,
		&discountCode, &shippingAddr, &billingAddr,
		&paymentID, &failure, &s.ExpiresAt, &s.CompletedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &s.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	if s.ShippingAddress, err = unmarshalAddress(shippingAddr); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if s.BillingAddress, err = unmarshalAddress(billingAddr); err != nil {
		return nil, fmt.Errorf("unmarshaling billing address: %w", err)
	}
	s.DiscountCode = fromNullable(discountCode)
	s.PaymentIntentID = fromNullable(paymentID)
	s.FailureReason = fromNullable(failure)
	return &s, nil
}

func marshalAddress(a *domain.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func unmarshalAddress(b []byte) (*domain.Address, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a domain.Address
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
