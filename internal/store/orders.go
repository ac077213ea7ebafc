package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/database"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/models"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type CreateOrderRequest struct {
	UserID          int64
	ShippingAddress string
	Remarks         string
	Items           []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID     int64
	Units         int
	PackQty       int
	BoxQty        int
	ProductName   string
	FeaturedImage string
}

// generateOrderID builds a time-prefixed identifier with a random suffix.
// Collisions are negligible without a uniqueness probe before insert.
func generateOrderID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102150405"), suffix)
}

// CreateOrder persists one line-item row per requested product under a
// fresh order id, all in a single transaction. The price of each product is
// snapshotted into final_price at this point; inventory, ledger and cart
// are untouched.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (string, error) {
	if len(req.Items) == 0 {
		return "", database.ErrEmptyCart
	}

	orderID := generateOrderID()

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			req.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		for _, item := range req.Items {
			var finalPrice *decimal.Decimal
			var price decimal.Decimal
			err := tx.QueryRowContext(ctx,
				`SELECT price FROM products WHERE id = $1`,
				item.ProductID).Scan(&price)
			switch {
			case err == sql.ErrNoRows:
				// Product gone between cart read and checkout; the line is
				// kept with a NULL snapshot.
			case err != nil:
				return fmt.Errorf("snapshot price for product %d: %w", item.ProductID, err)
			default:
				finalPrice = &price
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items
				 (order_id, user_id, product_id, product_name, featured_image,
				  units, pack_qty, box_qty, accepted_units, admin_notes, final_price,
				  status, payment_status, shipping_address, remarks, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, '', $9, $10, $11, $12, $13, NOW())`,
				orderID, req.UserID, item.ProductID, item.ProductName, item.FeaturedImage,
				item.Units, item.PackQty, item.BoxQty, finalPrice,
				models.OrderStatusPending, models.PaymentStatusNotPaid,
				req.ShippingAddress, req.Remarks)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return orderID, nil
}

const orderItemColumns = `id, order_id, user_id, product_id, product_name, featured_image,
	units, pack_qty, box_qty, accepted_units, admin_notes, final_price,
	status, payment_status, shipping_address, remarks, created_at`

func scanOrderItem(rows *sql.Rows) (models.OrderItem, error) {
	var item models.OrderItem
	err := rows.Scan(
		&item.ID,
		&item.OrderID,
		&item.UserID,
		&item.ProductID,
		&item.ProductName,
		&item.FeaturedImage,
		&item.Units,
		&item.PackQty,
		&item.BoxQty,
		&item.AcceptedUnits,
		&item.AdminNotes,
		&item.FinalPrice,
		&item.Status,
		&item.PaymentStatus,
		&item.ShippingAddress,
		&item.Remarks,
		&item.CreatedAt,
	)
	return item, err
}

// GetOrderItems returns every line item of an order.
func GetOrderItems(ctx context.Context, q Querier, orderID string) ([]models.OrderItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderItemColumns)

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(items) == 0 {
		return nil, database.ErrOrderNotFound
	}

	return items, nil
}

// LockOrderItems reads an order's line items under FOR UPDATE so that two
// concurrent status transitions on the same order serialize.
func LockOrderItems(ctx context.Context, tx *sql.Tx, orderID string) ([]models.OrderItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
		FOR UPDATE`, orderItemColumns)

	rows, err := tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("lock order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(items) == 0 {
		return nil, database.ErrOrderNotFound
	}

	return items, nil
}

// SetOrderStatus updates the status field on every line item of the order.
func SetOrderStatus(ctx context.Context, tx *sql.Tx, orderID string, status models.OrderStatus) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE order_items SET status = $1 WHERE order_id = $2`,
		status, orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

// UpdateAcceptance overwrites the accepted quantity and admin notes on one
// (order, product) line. The write is an overwrite, not an increment, so
// repeating it is harmless.
func UpdateAcceptance(ctx context.Context, db *sql.DB, orderID string, productID int64, acceptedUnits int, adminNotes string) error {
	if acceptedUnits < 0 {
		return database.ErrInvalidQuantity
	}

	result, err := db.ExecContext(ctx,
		`UPDATE order_items
		 SET accepted_units = $1, admin_notes = $2
		 WHERE order_id = $3 AND product_id = $4`,
		acceptedUnits, adminNotes, orderID, productID)
	if err != nil {
		return fmt.Errorf("update acceptance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrItemNotFound
	}

	return nil
}

// OrderTotal sums (units + pack_qty + box_qty) x price over the order's
// line items, preferring the final_price snapshot and falling back to the
// live catalog price. Rounded to 2 decimal places. A line whose product is
// gone and whose snapshot is NULL contributes nothing.
func OrderTotal(ctx context.Context, q Querier, orderID string) (decimal.Decimal, error) {
	query := `
		SELECT o.units + o.pack_qty + o.box_qty, o.final_price, p.price
		FROM order_items o
		LEFT JOIN products p ON p.id = o.product_id
		WHERE o.order_id = $1`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("select order totals: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	found := false
	for rows.Next() {
		var qty int64
		var finalPrice, livePrice *decimal.Decimal
		if err := rows.Scan(&qty, &finalPrice, &livePrice); err != nil {
			return decimal.Zero, fmt.Errorf("scan order total row: %w", err)
		}
		found = true

		price := decimal.Zero
		switch {
		case finalPrice != nil:
			price = *finalPrice
		case livePrice != nil:
			price = *livePrice
		}

		total = total.Add(price.Mul(decimal.NewFromInt(qty)))
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("rows error: %w", err)
	}

	if !found {
		return decimal.Zero, database.ErrOrderNotFound
	}

	return total.Round(2), nil
}

// OrderSummary is the grouped, order-level view of the line-item rows.
type OrderSummary struct {
	OrderID       string               `json:"order_id"`
	UserID        int64                `json:"user_id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	ItemCount     int                  `json:"item_count"`
	CreatedAt     time.Time            `json:"created_at"`
}

const orderSummarySelect = `
	SELECT order_id, user_id, MIN(status) AS status, MIN(payment_status) AS payment_status,
	       COUNT(*) AS item_count, MIN(created_at) AS created_at
	FROM order_items`

func scanOrderSummaries(rows *sql.Rows) ([]OrderSummary, error) {
	var orders []OrderSummary
	for rows.Next() {
		var o OrderSummary
		if err := rows.Scan(&o.OrderID, &o.UserID, &o.Status, &o.PaymentStatus, &o.ItemCount, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order summary: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// GetOrdersByUser returns the user's orders, newest first.
func GetOrdersByUser(ctx context.Context, db *sql.DB, userID int64) ([]OrderSummary, error) {
	query := orderSummarySelect + `
		WHERE user_id = $1
		GROUP BY order_id, user_id
		ORDER BY MIN(created_at) DESC, order_id DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	return scanOrderSummaries(rows)
}

// GetOrdersByStatus lists orders in a given status for the admin
// acceptance queue, oldest first.
func GetOrdersByStatus(ctx context.Context, db *sql.DB, status models.OrderStatus) ([]OrderSummary, error) {
	query := orderSummarySelect + `
		WHERE status = $1
		GROUP BY order_id, user_id
		ORDER BY MIN(created_at), order_id`

	rows, err := db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("select orders by status: %w", err)
	}
	defer rows.Close()

	return scanOrderSummaries(rows)
}

// ListOrdersCursor pages through a user's orders with a keyset cursor.
func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := orderSummarySelect + `
		WHERE user_id = $1
		GROUP BY order_id, user_id
		HAVING (MIN(created_at), order_id) < ($2, $3)
		ORDER BY MIN(created_at) DESC, order_id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.OrderID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderSummaries(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			OrderID:   last.OrderID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
