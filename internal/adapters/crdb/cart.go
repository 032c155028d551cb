package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/travel-bookings/internal/domain"
)

// AddCartItem inserts the item and folds its price into the owning cart's
// cached totals in one transaction. The cart is created lazily on the user's
// first add.
func (r *Repository) AddCartItem(ctx context.Context, userID uuid.UUID, item domain.CartItem) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		c, err := getCartByUser(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			c = &domain.Cart{
				ID:        uuid.New(),
				UserID:    userID,
				IsValid:   true,
				CreatedAt: time.Now(),
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO carts (id, user_id, item_ids, total_amount, final_amount, is_valid)
				VALUES ($1, $2, '{}', 0, 0, true)
			`, c.ID, c.UserID)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO cart_items (id, package_id, departure_id, adults, children, adult_price, child_price, total_price, start_date, expires_at, available)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, item.ID, item.PackageID, item.DepartureID, item.Adults, item.Children,
			item.AdultPrice, item.ChildPrice, item.TotalPrice, item.StartDate, item.ExpiresAt, item.Available)
		if err != nil {
			return err
		}

		c.ItemIDs = append(c.ItemIDs, item.ID)
		c.TotalAmount += item.TotalPrice
		c.FinalAmount += item.TotalPrice
		_, err = tx.Exec(ctx, `
			UPDATE carts SET item_ids = $2, total_amount = $3, final_amount = $4, updated_at = now()
			WHERE id = $1
		`, c.ID, c.ItemIDs, c.TotalAmount, c.FinalAmount)
		if err != nil {
			return err
		}
		cart = *c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// RemoveCartItem deletes the item and subtracts its price from the cart's
// cached totals; cart row rewrite, list filter and item delete commit together.
func (r *Repository) RemoveCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		cart, err := getCart(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if !containsID(cart.ItemIDs, itemID) {
			return errors.Wrap(domain.ErrNotFound, "cart item")
		}

		var price float64
		err = tx.QueryRow(ctx, `SELECT total_price FROM cart_items WHERE id = $1`, itemID).Scan(&price)
		if err == pgx.ErrNoRows {
			return errors.Wrap(domain.ErrNotFound, "cart item")
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE carts SET item_ids = $2, total_amount = total_amount - $3, final_amount = final_amount - $3, updated_at = now()
			WHERE id = $1
		`, cartID, removeID(cart.ItemIDs, itemID), price)
		return err
	})
}

// UpdateCartItem applies a quantity edit: the item's total is recomputed from
// its snapshotted unit prices and the cart totals are adjusted by the delta,
// so no re-summing of sibling items is needed.
func (r *Repository) UpdateCartItem(ctx context.Context, cartID, itemID uuid.UUID, adults, children int) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		cart, err := getCart(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if !containsID(cart.ItemIDs, itemID) {
			return errors.Wrap(domain.ErrNotFound, "cart item")
		}

		item, err := getCartItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		oldPrice := item.TotalPrice
		item.Reprice(adults, children)

		_, err = tx.Exec(ctx, `
			UPDATE cart_items SET adults = $2, children = $3, total_price = $4, updated_at = now()
			WHERE id = $1
		`, itemID, item.Adults, item.Children, item.TotalPrice)
		if err != nil {
			return err
		}

		delta := item.TotalPrice - oldPrice
		_, err = tx.Exec(ctx, `
			UPDATE carts SET total_amount = total_amount + $2, final_amount = final_amount + $2, updated_at = now()
			WHERE id = $1
		`, cartID, delta)
		return err
	})
}

// GetCart returns the cart and its items, ordered as the cart's id list.
func (r *Repository) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, []domain.CartItem, error) {
	cart, err := scanCart(r.pool.QueryRow(ctx, `
		SELECT id, user_id, item_ids, total_amount, final_amount, is_valid, created_at, updated_at
		FROM carts WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1
	`, userID))
	if err != nil {
		return nil, nil, err
	}

	items, err := r.cartItemsByIDs(ctx, cart.ItemIDs)
	if err != nil {
		return nil, nil, err
	}
	return cart, items, nil
}

// GetCartItems resolves the selected item ids, verifying every one still
// belongs to the cart.
func (r *Repository) GetCartItems(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) ([]domain.CartItem, error) {
	cart, err := scanCart(r.pool.QueryRow(ctx, `
		SELECT id, user_id, item_ids, total_amount, final_amount, is_valid, created_at, updated_at
		FROM carts WHERE id = $1
	`, cartID))
	if err != nil {
		return nil, err
	}

	for _, id := range itemIDs {
		if !containsID(cart.ItemIDs, id) {
			return nil, errors.Wrapf(domain.ErrNotFound, "cart item %s", id)
		}
	}
	return r.cartItemsByIDs(ctx, itemIDs)
}

func (r *Repository) cartItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.CartItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, package_id, departure_id, adults, children, adult_price, child_price, total_price, start_date, expires_at, available, created_at, updated_at
		FROM cart_items WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]domain.CartItem, len(ids))
	for rows.Next() {
		var it domain.CartItem
		err := rows.Scan(&it.ID, &it.PackageID, &it.DepartureID, &it.Adults, &it.Children,
			&it.AdultPrice, &it.ChildPrice, &it.TotalPrice, &it.StartDate, &it.ExpiresAt,
			&it.Available, &it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			return nil, err
		}
		byID[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := make([]domain.CartItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func getCartByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Cart, error) {
	return scanCart(tx.QueryRow(ctx, `
		SELECT id, user_id, item_ids, total_amount, final_amount, is_valid, created_at, updated_at
		FROM carts WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1
	`, userID))
}

func getCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (*domain.Cart, error) {
	return scanCart(tx.QueryRow(ctx, `
		SELECT id, user_id, item_ids, total_amount, final_amount, is_valid, created_at, updated_at
		FROM carts WHERE id = $1
	`, cartID))
}

func getCartItem(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*domain.CartItem, error) {
	var it domain.CartItem
	err := tx.QueryRow(ctx, `
		SELECT id, package_id, departure_id, adults, children, adult_price, child_price, total_price, start_date, expires_at, available, created_at, updated_at
		FROM cart_items WHERE id = $1
	`, itemID).Scan(&it.ID, &it.PackageID, &it.DepartureID, &it.Adults, &it.Children,
		&it.AdultPrice, &it.ChildPrice, &it.TotalPrice, &it.StartDate, &it.ExpiresAt,
		&it.Available, &it.CreatedAt, &it.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrap(domain.ErrNotFound, "cart item")
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var c domain.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.ItemIDs, &c.TotalAmount, &c.FinalAmount, &c.IsValid, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrap(domain.ErrNotFound, "cart")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
