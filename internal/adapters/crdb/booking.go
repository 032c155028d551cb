package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/travel-bookings/internal/domain"
)

func (r *Repository) GetDeparture(ctx context.Context, id uuid.UUID) (*domain.Departure, error) {
	var d domain.Departure
	err := r.pool.QueryRow(ctx, `
		SELECT id, package_id, start_date, capacity, booked
		FROM departures WHERE id = $1
	`, id).Scan(&d.ID, &d.PackageID, &d.StartDate, &d.Capacity, &d.Booked)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrap(domain.ErrNotFound, "departure")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) InsertDeparture(ctx context.Context, d domain.Departure) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO departures (id, package_id, start_date, capacity, booked)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.PackageID, d.StartDate, d.Capacity, d.Booked)
	return err
}

// CreateBookings applies the direct-buy path: every booking's departure is
// capacity-checked and its booked counter bumped in the same transaction that
// inserts the bookings. All of it commits or none of it does.
func (r *Repository) CreateBookings(ctx context.Context, bookings []domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := insertBookings(ctx, tx, bookings); err != nil {
			return err
		}
		return insertCheckoutOutbox(ctx, tx, bookings)
	})
}

// CreateBookingsFromCart additionally consumes the selected cart items: the
// item rows are deleted, the cart's id list is rewritten and its cached totals
// reduced by exactly the consumed prices, all inside the booking transaction.
func (r *Repository) CreateBookingsFromCart(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID, bookings []domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		cart, err := getCart(ctx, tx, cartID)
		if err != nil {
			return err
		}
		remaining := cart.ItemIDs
		for _, id := range itemIDs {
			if !containsID(cart.ItemIDs, id) {
				return errors.Wrapf(domain.ErrNotFound, "cart item %s", id)
			}
			remaining = removeID(remaining, id)
		}

		if err := insertBookings(ctx, tx, bookings); err != nil {
			return err
		}

		var consumed float64
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(total_price), 0) FROM cart_items WHERE id = ANY($1)
		`, itemIDs).Scan(&consumed)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, itemIDs); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE carts SET item_ids = $2, total_amount = total_amount - $3, final_amount = final_amount - $3, updated_at = now()
			WHERE id = $1
		`, cartID, remaining, consumed)
		if err != nil {
			return err
		}

		return insertCheckoutOutbox(ctx, tx, bookings)
	})
}

func insertBookings(ctx context.Context, tx pgx.Tx, bookings []domain.Booking) error {
	for _, b := range bookings {
		if err := reserveCapacity(ctx, tx, b.DepartureID, b.Travelers); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, user_id, package_id, departure_id, payment_id, adults, children, travelers, subtotal, total_amount, start_date, end_date, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, b.ID, b.UserID, b.PackageID, b.DepartureID, b.PaymentID, b.Adults, b.Children,
			b.Travelers, b.Subtotal, b.TotalAmount, b.StartDate, b.EndDate, b.Status)
		if err != nil {
			return err
		}
	}
	return nil
}

// reserveCapacity reads the live counter inside the transaction; availability
// observed at add-to-cart time is not trusted here.
func reserveCapacity(ctx context.Context, tx pgx.Tx, departureID uuid.UUID, travelers int) error {
	var capacity, booked int
	err := tx.QueryRow(ctx, `
		SELECT capacity, booked FROM departures WHERE id = $1
	`, departureID).Scan(&capacity, &booked)
	if err == pgx.ErrNoRows {
		return errors.Wrap(domain.ErrNotFound, "departure")
	}
	if err != nil {
		return err
	}
	if booked+travelers > capacity {
		return errors.Wrapf(domain.ErrCapacityExceeded, "departure %s: %d booked of %d, requested %d",
			departureID, booked, capacity, travelers)
	}
	_, err = tx.Exec(ctx, `
		UPDATE departures SET booked = booked + $2 WHERE id = $1
	`, departureID, travelers)
	return err
}

func insertCheckoutOutbox(ctx context.Context, tx pgx.Tx, bookings []domain.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	rec, err := NewOutboxRecord("payment", bookings[0].PaymentID, "checkout.completed", map[string]interface{}{
		"payment_id":  bookings[0].PaymentID,
		"user_id":     bookings[0].UserID,
		"booking_ids": ids,
	})
	if err != nil {
		return err
	}
	return InsertOutbox(ctx, tx, rec)
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, package_id, departure_id, payment_id, adults, children, travelers, subtotal, total_amount, start_date, end_date, status, created_at, updated_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.UserID, &b.PackageID, &b.DepartureID, &b.PaymentID, &b.Adults,
		&b.Children, &b.Travelers, &b.Subtotal, &b.TotalAmount, &b.StartDate, &b.EndDate,
		&b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrap(domain.ErrNotFound, "booking")
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CancelBooking validates the transition inside the transaction. Cancelling a
// PAID booking queues a refund request before the status flips; illegal
// transitions fail loudly rather than no-op.
func (r *Repository) CancelBooking(ctx context.Context, id uuid.UUID) error {
	return r.transitionBooking(ctx, id, domain.BookingCancelled)
}

func (r *Repository) CompleteBooking(ctx context.Context, id uuid.UUID) error {
	return r.transitionBooking(ctx, id, domain.BookingCompleted)
}

func (r *Repository) RefundBooking(ctx context.Context, id uuid.UUID) error {
	return r.transitionBooking(ctx, id, domain.BookingRefunded)
}

func (r *Repository) transitionBooking(ctx context.Context, id uuid.UUID, next domain.BookingStatus) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var current domain.BookingStatus
		var userID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT status, user_id FROM bookings WHERE id = $1
		`, id).Scan(&current, &userID)
		if err == pgx.ErrNoRows {
			return errors.Wrap(domain.ErrNotFound, "booking")
		}
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(next) {
			return errors.Wrapf(domain.ErrIllegalTransition, "booking %s: %s -> %s", id, current, next)
		}

		if next == domain.BookingCancelled && current == domain.BookingPaid {
			rec, err := NewOutboxRecord("booking", id, "booking.refund_requested", map[string]interface{}{
				"booking_id": id,
				"user_id":    userID,
			})
			if err != nil {
				return err
			}
			if err := InsertOutbox(ctx, tx, rec); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1
		`, id, next)
		return err
	})
}

// CompletePastBookings is the scheduled sweep: one batched update moving every
// departed CONFIRMED/PAID booking to COMPLETED. Running it twice is a no-op
// the second time.
func (r *Repository) CompletePastBookings(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings SET status = 'COMPLETED', updated_at = now()
		WHERE start_date < $1 AND status IN ('CONFIRMED', 'PAID')
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// DeleteBooking is the admin hard delete; every other path only moves status.
func (r *Repository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrap(domain.ErrNotFound, "booking")
	}
	return nil
}
