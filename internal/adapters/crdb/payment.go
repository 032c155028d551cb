package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/travel-bookings/internal/domain"
)

// InsertPayment is a single-row write; a failure here leaves no other side
// effects behind.
func (r *Repository) InsertPayment(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (id, user_id, amount, method, status, gateway_txn_id, booking_ids)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::UUID[], '{}'))
	`, p.ID, p.UserID, p.Amount, p.Method, p.Status, p.GatewayTxnID, p.BookingIDs)
	return err
}

// UpdatePaymentStatus is an intentionally unchecked primitive: transition
// legality is the orchestrator's job. Empty gatewayTxnID and nil bookingIDs
// leave the stored values untouched.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, gatewayTxnID string, bookingIDs []uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE payments SET
			status = $2,
			gateway_txn_id = CASE WHEN $3 = '' THEN gateway_txn_id ELSE $3 END,
			booking_ids = CASE WHEN $4::UUID[] IS NULL THEN booking_ids ELSE $4 END,
			updated_at = now()
		WHERE id = $1
	`, id, status, gatewayTxnID, bookingIDs)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrap(domain.ErrNotFound, "payment")
	}
	return nil
}

func (r *Repository) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, amount, method, status, gateway_txn_id, booking_ids, created_at, updated_at
		FROM payments WHERE id = $1
	`, id).Scan(&p.ID, &p.UserID, &p.Amount, &p.Method, &p.Status, &p.GatewayTxnID,
		&p.BookingIDs, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrap(domain.ErrNotFound, "payment")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindOrphanedPayments surfaces charged-but-unbooked payments past the grace
// period: a process crash between the gateway success and the booking
// transaction leaves exactly this state behind.
func (r *Repository) FindOrphanedPayments(ctx context.Context, olderThan time.Time) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, method, status, gateway_txn_id, booking_ids, created_at, updated_at
		FROM payments
		WHERE status = 'SUCCESS' AND cardinality(booking_ids) = 0 AND updated_at < $1
		AND NOT EXISTS (SELECT 1 FROM bookings WHERE bookings.payment_id = payments.id)
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Method, &p.Status, &p.GatewayTxnID,
			&p.BookingIDs, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkPaymentRefunded records the compensation and queues the refund event in
// one transaction.
func (r *Repository) MarkPaymentRefunded(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var current domain.PaymentStatus
		var userID uuid.UUID
		var amount float64
		err := tx.QueryRow(ctx, `
			SELECT status, user_id, amount FROM payments WHERE id = $1
		`, id).Scan(&current, &userID, &amount)
		if err == pgx.ErrNoRows {
			return errors.Wrap(domain.ErrNotFound, "payment")
		}
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(domain.PaymentRefunded) {
			return errors.Wrapf(domain.ErrIllegalTransition, "payment %s: %s -> %s", id, current, domain.PaymentRefunded)
		}

		_, err = tx.Exec(ctx, `
			UPDATE payments SET status = 'REFUNDED', updated_at = now() WHERE id = $1
		`, id)
		if err != nil {
			return err
		}

		rec, err := NewOutboxRecord("payment", id, "payment.refunded", map[string]interface{}{
			"payment_id": id,
			"user_id":    userID,
			"amount":     amount,
		})
		if err != nil {
			return err
		}
		return InsertOutbox(ctx, tx, rec)
	})
}
