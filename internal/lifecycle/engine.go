// Package lifecycle orchestrates the order lifecycle: cart to order
// conversion, accept/reject transitions with their inventory and
// outstanding-balance side effects, partial acceptance and payments.
package lifecycle

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/weprixetechnologies/cly-backend-sub000/internal/database"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/models"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/store"
)

type Engine struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewEngine(db *sql.DB, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		logger: logger,
	}
}

// Checkout converts the user's cart into a pending order, then clears the
// cart. Clearing is best-effort: a failure there leaves the order in place
// and is only logged, so the user may see a stale cart but never loses an
// order.
func (e *Engine) Checkout(ctx context.Context, userID int64, shippingAddress, remarks string) (string, error) {
	cart, err := store.GetCartByUser(ctx, e.db, userID)
	if err != nil {
		return "", err
	}
	if len(cart) == 0 {
		return "", database.ErrEmptyCart
	}

	req := store.CreateOrderRequest{
		UserID:          userID,
		ShippingAddress: shippingAddress,
		Remarks:         remarks,
	}
	for _, line := range cart {
		req.Items = append(req.Items, store.OrderItemRequest{
			ProductID:     line.ProductID,
			Units:         line.Units,
			PackQty:       line.PackQty,
			BoxQty:        line.BoxQty,
			ProductName:   line.ProductName,
			FeaturedImage: line.FeaturedImage,
		})
	}

	orderID, err := store.CreateOrder(ctx, e.db, req)
	if err != nil {
		return "", err
	}

	if err := store.ClearCart(ctx, e.db, userID); err != nil {
		e.logger.Error("clear cart after checkout failed",
			zap.Int64("user_id", userID),
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	return orderID, nil
}

// CreateOrder converts an explicit item list into a pending order without
// touching any cart.
func (e *Engine) CreateOrder(ctx context.Context, req store.CreateOrderRequest) (string, error) {
	return store.CreateOrder(ctx, e.db, req)
}

// UpdateOrderStatus moves an order to the target status.
//
// Moving into accepted updates every line item and deducts each line's
// requested quantity from inventory inside one transaction. The matching
// outstanding-balance credit (and the debit on an accepted->rejected
// reversal) happens after the commit and is best-effort: a failure is
// logged, the status change stands. Inventory is never restored on a
// reversal. Setting the current status again is a no-op.
func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID string, target models.OrderStatus) error {
	if !target.Valid() {
		return database.ErrInvalidStatus
	}

	var (
		prev    models.OrderStatus
		userID  int64
		changed bool
	)

	err := database.WithRetry(ctx, e.db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		changed = false

		items, err := store.LockOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}

		prev = items[0].Status
		userID = items[0].UserID

		if prev == target {
			return nil
		}
		if !models.CanTransition(prev, target) {
			return database.ErrInvalidTransition
		}

		if err := store.SetOrderStatus(ctx, tx, orderID, target); err != nil {
			return err
		}

		if target == models.OrderStatusAccepted {
			for _, item := range items {
				if err := store.DeductInventory(ctx, tx, item.ProductID, item.RequestedQty()); err != nil {
					return err
				}
			}
		}

		changed = true
		return nil
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	switch {
	case target == models.OrderStatusAccepted:
		e.creditOutstanding(ctx, orderID, userID)
	case target == models.OrderStatusRejected && prev == models.OrderStatusAccepted:
		e.debitOutstanding(ctx, orderID, userID)
	}

	return nil
}

func (e *Engine) creditOutstanding(ctx context.Context, orderID string, userID int64) {
	total, err := store.OrderTotal(ctx, e.db, orderID)
	if err != nil {
		e.logger.Error("outstanding credit skipped: order total failed",
			zap.String("order_id", orderID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return
	}

	if err := store.AddOutstanding(ctx, e.db, userID, total); err != nil {
		e.logger.Error("outstanding credit failed",
			zap.String("order_id", orderID),
			zap.Int64("user_id", userID),
			zap.String("amount", total.String()),
			zap.Error(err))
	}
}

func (e *Engine) debitOutstanding(ctx context.Context, orderID string, userID int64) {
	total, err := store.OrderTotal(ctx, e.db, orderID)
	if err != nil {
		e.logger.Error("outstanding debit skipped: order total failed",
			zap.String("order_id", orderID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return
	}

	if err := store.SubtractOutstanding(ctx, e.db, userID, total); err != nil {
		e.logger.Error("outstanding debit failed",
			zap.String("order_id", orderID),
			zap.Int64("user_id", userID),
			zap.String("amount", total.String()),
			zap.Error(err))
	}
}

// UpdateOrderAcceptance overwrites the admin-confirmed quantity and notes
// on one line item. No inventory or ledger effect; those are driven solely
// by order-level status transitions.
func (e *Engine) UpdateOrderAcceptance(ctx context.Context, orderID string, productID int64, acceptedUnits int, adminNotes string) error {
	return store.UpdateAcceptance(ctx, e.db, orderID, productID, acceptedUnits, adminNotes)
}

// OrderTotal returns the order's monetary total, rounded to 2 places.
func (e *Engine) OrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	return store.OrderTotal(ctx, e.db, orderID)
}

// RecordPayment appends a partial payment and recomputes the order's
// payment status in the same transaction.
func (e *Engine) RecordPayment(ctx context.Context, orderID string, amount decimal.Decimal, method, reference string) (*models.Payment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, database.ErrInvalidQuantity
	}

	var payment *models.Payment

	err := database.WithRetry(ctx, e.db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		total, err := store.OrderTotal(ctx, tx, orderID)
		if err != nil {
			return err
		}

		payment, err = store.AddPayment(ctx, tx, orderID, amount, method, reference)
		if err != nil {
			return err
		}

		paid, err := store.SumPayments(ctx, tx, orderID)
		if err != nil {
			return err
		}

		status := models.PaymentStatusNotPaid
		switch {
		case paid.GreaterThanOrEqual(total) && total.GreaterThan(decimal.Zero):
			status = models.PaymentStatusPaid
		case paid.GreaterThan(decimal.Zero):
			status = models.PaymentStatusPartiallyPaid
		}

		return store.SetPaymentStatus(ctx, tx, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	return payment, nil
}

func (e *Engine) GetOrderByID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return store.GetOrderItems(ctx, e.db, orderID)
}

func (e *Engine) GetOrdersByUser(ctx context.Context, userID int64) ([]store.OrderSummary, error) {
	return store.GetOrdersByUser(ctx, e.db, userID)
}

func (e *Engine) GetOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]store.OrderSummary, error) {
	if !status.Valid() {
		return nil, database.ErrInvalidStatus
	}
	return store.GetOrdersByStatus(ctx, e.db, status)
}

func (e *Engine) ListOrders(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error) {
	return store.ListOrdersCursor(ctx, e.db, userID, cursor, limit)
}

func (e *Engine) GetPayments(ctx context.Context, orderID string) ([]models.Payment, error) {
	return store.GetPayments(ctx, e.db, orderID)
}

func (e *Engine) GetCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return store.GetCartByUser(ctx, e.db, userID)
}

func (e *Engine) SetCartItem(ctx context.Context, userID, productID int64, units, packQty, boxQty int) error {
	return store.SetCartItem(ctx, e.db, userID, productID, units, packQty, boxQty)
}

func (e *Engine) ClearCart(ctx context.Context, userID int64) error {
	return store.ClearCart(ctx, e.db, userID)
}

func (e *Engine) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	return store.CreateUser(ctx, e.db, email, name)
}

func (e *Engine) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return store.GetUser(ctx, e.db, id)
}

func (e *Engine) CreateProduct(ctx context.Context, req store.CreateProductRequest) (*models.Product, error) {
	return store.CreateProduct(ctx, e.db, req)
}

func (e *Engine) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return store.GetProduct(ctx, e.db, id)
}

func (e *Engine) ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	return store.ListProducts(ctx, e.db, page, pageSize)
}

// SetInventory overwrites a product's inventory level. The row is locked
// NOWAIT first, so an admin adjustment returns ErrLockTimeout instead of
// queueing behind a concurrent accept transaction.
func (e *Engine) SetInventory(ctx context.Context, productID int64, inventory int) error {
	return database.WithTransaction(ctx, e.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := store.LockProductNoWait(ctx, tx, productID); err != nil {
			return err
		}
		return store.SetInventory(ctx, tx, productID, inventory)
	})
}
