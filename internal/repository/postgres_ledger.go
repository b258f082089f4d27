package repository

import (
	"context"
	"errors"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errIntentAlreadyConfirmed = errors.New("payment intent already confirmed")

type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{
		db: db,
	}
}

func (p *PostgresLedger) SaveAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	query := `
		INSERT INTO checkout_attempts (
			id,
			idempotency_key,
			basket_id,
			state,
			error_code,
			charge_total,
			payment_intent_id,
			order_id,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state,
			error_code = EXCLUDED.error_code,
			payment_intent_id = EXCLUDED.payment_intent_id,
			order_id = EXCLUDED.order_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.Exec(
		ctx,
		query,
		attempt.ID,
		attempt.IdempotencyKey,
		attempt.BasketID,
		attempt.State,
		attempt.ErrorCode,
		attempt.ChargeTotal,
		attempt.PaymentIntentID,
		attempt.OrderID,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)

	return err
}

func (p *PostgresLedger) GetAttempt(ctx context.Context, id string) (*domain.CheckoutAttempt, error) {
	query := `
		SELECT id, idempotency_key, basket_id, state, error_code, charge_total, payment_intent_id, order_id, created_at, updated_at
		FROM checkout_attempts
		WHERE id = $1
	`

	var attempt domain.CheckoutAttempt

	err := p.db.QueryRow(ctx, query, id).Scan(
		&attempt.ID,
		&attempt.IdempotencyKey,
		&attempt.BasketID,
		&attempt.State,
		&attempt.ErrorCode,
		&attempt.ChargeTotal,
		&attempt.PaymentIntentID,
		&attempt.OrderID,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &attempt, nil
}

// ConfirmIntent records an intent as confirmed. Recording the same intent
// again is not an error; it reports alreadyConfirmed instead.
func (p *PostgresLedger) ConfirmIntent(ctx context.Context, paymentIntentID, orderID string) (bool, error) {
	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO confirmed_intents (payment_intent_id, order_id)
			VALUES ($1, $2)
		`

		_, err := tx.Exec(ctx, query, paymentIntentID, orderID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return errIntentAlreadyConfirmed
			}

			return err
		}

		query = `
			UPDATE checkout_attempts
			SET order_id = $1, updated_at = NOW()
			WHERE payment_intent_id = $2 AND order_id = ''
		`

		_, err = tx.Exec(ctx, query, orderID, paymentIntentID)
		return err
	})

	if errors.Is(err, errIntentAlreadyConfirmed) {
		return true, nil
	}

	return false, err
}

func (p *PostgresLedger) IsIntentConfirmed(ctx context.Context, paymentIntentID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM confirmed_intents WHERE payment_intent_id = $1)`

	var confirmed bool

	err := p.db.QueryRow(ctx, query, paymentIntentID).Scan(&confirmed)
	if err != nil {
		return false, err
	}

	return confirmed, nil
}

func (p *PostgresLedger) RecordRefund(ctx context.Context, refund domain.Refund) error {
	query := `
		INSERT INTO refunds (order_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := p.db.Exec(ctx, query, refund.OrderID, refund.Amount, refund.Reason, refund.CreatedAt)
	return err
}

func (p *PostgresLedger) RefundsByOrder(ctx context.Context, orderID string) ([]domain.Refund, error) {
	query := `
		SELECT order_id, amount, reason, created_at
		FROM refunds
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := p.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := make([]domain.Refund, 0)

	for rows.Next() {
		var refund domain.Refund

		err = rows.Scan(&refund.OrderID, &refund.Amount, &refund.Reason, &refund.CreatedAt)
		if err != nil {
			return nil, err
		}

		refunds = append(refunds, refund)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return refunds, nil
}
