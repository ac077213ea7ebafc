package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/weprixetechnologies/cly-backend-sub000/internal/database"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/models"
)

// GetCartByUser returns the user's cart lines joined with the live catalog
// fields needed for checkout (name, image, price, min_qty).
func GetCartByUser(ctx context.Context, db *sql.DB, userID int64) ([]models.CartItem, error) {
	query := `
		SELECT c.user_id, c.product_id, c.units, c.pack_qty, c.box_qty, c.added_at,
		       p.name, p.featured_image, p.price, p.min_qty
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.added_at`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		err := rows.Scan(
			&item.UserID,
			&item.ProductID,
			&item.Units,
			&item.PackQty,
			&item.BoxQty,
			&item.AddedAt,
			&item.ProductName,
			&item.FeaturedImage,
			&item.Price,
			&item.MinQty,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// SetCartItem upserts a cart line. units must be a positive multiple of the
// product's min_qty; units == 0 removes the line instead.
func SetCartItem(ctx context.Context, db *sql.DB, userID, productID int64, units, packQty, boxQty int) error {
	if units == 0 {
		return RemoveCartItem(ctx, db, userID, productID)
	}

	var minQty int
	err := db.QueryRowContext(ctx,
		`SELECT min_qty FROM products WHERE id = $1`,
		productID).Scan(&minQty)
	if err != nil {
		if err == sql.ErrNoRows {
			return database.ErrProductNotFound
		}
		return fmt.Errorf("get product min_qty: %w", err)
	}

	if units < 0 || units%minQty != 0 || packQty < 0 || boxQty < 0 {
		return database.ErrInvalidQuantity
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, units, pack_qty, box_qty, added_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET units = EXCLUDED.units, pack_qty = EXCLUDED.pack_qty, box_qty = EXCLUDED.box_qty`,
		userID, productID, units, packQty, boxQty)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	return nil
}

func RemoveCartItem(ctx context.Context, db *sql.DB, userID, productID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func ClearCart(ctx context.Context, db *sql.DB, userID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
