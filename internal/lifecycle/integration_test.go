package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/weprixetechnologies/cly-backend-sub000/internal/database"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/models"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/store"
)

var productSeq int

func seedProduct(t *testing.T, e *Engine, price int64, inventory, minQty int) *models.Product {
	t.Helper()

	productSeq++
	product, err := e.CreateProduct(context.Background(), store.CreateProductRequest{
		SKU:       fmt.Sprintf("SKU-%03d", productSeq),
		Name:      fmt.Sprintf("Product %d", productSeq),
		Price:     decimal.NewFromInt(price),
		Inventory: inventory,
		MinQty:    minQty,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func seedUser(t *testing.T, e *Engine, email string) *models.User {
	t.Helper()

	user, err := e.CreateUser(context.Background(), email, "Test User")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestAcceptDeductsInventoryAndCreditsOutstanding(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "accept@example.com")
	product := seedProduct(t, e, 100, 50, 1)

	if err := e.SetCartItem(ctx, user.ID, product.ID, 3, 0, 0); err != nil {
		t.Fatalf("set cart item: %v", err)
	}

	orderID, err := e.Checkout(ctx, user.ID, "12 Harbor Lane", "")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	cart, err := e.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart) != 0 {
		t.Errorf("cart should be empty after checkout, have %d items", len(cart))
	}

	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted); err != nil {
		t.Fatalf("accept order: %v", err)
	}

	productAfter, err := e.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if productAfter.Inventory != 47 {
		t.Errorf("inventory = %d, want 47", productAfter.Inventory)
	}

	userAfter, err := e.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !userAfter.Outstanding.Equal(decimal.NewFromInt(300)) {
		t.Errorf("outstanding = %s, want 300", userAfter.Outstanding)
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "idempotent@example.com")
	product := seedProduct(t, e, 100, 50, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 3, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted); err != nil {
		t.Fatalf("second accept should be a no-op, got %v", err)
	}

	productAfter, err := e.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if productAfter.Inventory != 47 {
		t.Errorf("inventory = %d after repeat accept, want 47", productAfter.Inventory)
	}

	userAfter, err := e.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !userAfter.Outstanding.Equal(decimal.NewFromInt(300)) {
		t.Errorf("outstanding = %s after repeat accept, want 300", userAfter.Outstanding)
	}
}

func TestRejectAfterAcceptReversesLedgerButNotInventory(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "reversal@example.com")
	product := seedProduct(t, e, 50, 20, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 3, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusRejected); err != nil {
		t.Fatalf("reject after accept: %v", err)
	}

	userAfter, err := e.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !userAfter.Outstanding.Equal(decimal.Zero) {
		t.Errorf("outstanding = %s after reversal, want 0", userAfter.Outstanding)
	}

	// Inventory stays deducted: reversal is ledger-only.
	productAfter, err := e.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if productAfter.Inventory != 17 {
		t.Errorf("inventory = %d after reversal, want 17", productAfter.Inventory)
	}

	err = e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted)
	if !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("rejected->accepted: err = %v, want ErrInvalidTransition", err)
	}
}

func TestRejectFromPendingHasNoSideEffects(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "reject@example.com")
	product := seedProduct(t, e, 80, 10, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 2, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}

	productAfter, err := e.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if productAfter.Inventory != 10 {
		t.Errorf("inventory = %d, want untouched 10", productAfter.Inventory)
	}

	userAfter, err := e.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !userAfter.Outstanding.Equal(decimal.Zero) {
		t.Errorf("outstanding = %s, want 0", userAfter.Outstanding)
	}
}

func TestPartialAcceptanceKeepsRequestedDeduction(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "partial@example.com")
	product := seedProduct(t, e, 40, 30, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 5, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := e.UpdateOrderAcceptance(ctx, orderID, product.ID, 2, "short shipped"); err != nil {
		t.Fatalf("update acceptance: %v", err)
	}

	err = e.UpdateOrderAcceptance(ctx, orderID, product.ID+999, 2, "")
	if !errors.Is(err, database.ErrItemNotFound) {
		t.Errorf("acceptance on missing line: err = %v, want ErrItemNotFound", err)
	}

	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Deduction and ledger both follow requested units, not accepted units.
	productAfter, err := e.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if productAfter.Inventory != 25 {
		t.Errorf("inventory = %d, want 25 (requested 5 deducted)", productAfter.Inventory)
	}

	userAfter, err := e.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !userAfter.Outstanding.Equal(decimal.NewFromInt(200)) {
		t.Errorf("outstanding = %s, want 200", userAfter.Outstanding)
	}

	items, err := e.GetOrderByID(ctx, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if items[0].AcceptedUnits != 2 || items[0].AdminNotes != "short shipped" {
		t.Errorf("line = accepted %d notes %q, want 2 / short shipped", items[0].AcceptedUnits, items[0].AdminNotes)
	}
}

func TestInventoryAndOutstandingFloorAtZero(t *testing.T) {
	e, db, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "floor@example.com")
	product := seedProduct(t, e, 10, 4, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 100, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}

	productAfter, err := e.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if productAfter.Inventory != 0 {
		t.Errorf("inventory = %d, want floored 0", productAfter.Inventory)
	}

	if err := store.SubtractOutstanding(ctx, db, user.ID, decimal.NewFromInt(1_000_000)); err != nil {
		t.Fatalf("subtract outstanding: %v", err)
	}

	userAfter, err := e.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !userAfter.Outstanding.Equal(decimal.Zero) {
		t.Errorf("outstanding = %s, want floored 0", userAfter.Outstanding)
	}
}

func TestCreateOrderIsAtomic(t *testing.T) {
	e, db, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "atomic@example.com")
	product := seedProduct(t, e, 10, 4, 1)

	// The duplicate product violates the (order_id, product_id) constraint on
	// the second insert; the first line must not survive.
	_, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 1, ProductName: product.Name},
			{ProductID: product.ID, Units: 2, ProductName: product.Name},
		},
	})
	if err == nil {
		t.Fatal("expected duplicate line items to fail")
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_items WHERE user_id = $1`,
		user.ID).Scan(&count); err != nil {
		t.Fatalf("count order items: %v", err)
	}
	if count != 0 {
		t.Errorf("found %d orphaned line items, want 0", count)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "empty@example.com")

	_, err := e.Checkout(ctx, user.ID, "", "")
	if !errors.Is(err, database.ErrEmptyCart) {
		t.Fatalf("checkout with empty cart: err = %v, want ErrEmptyCart", err)
	}
}

func TestCartQuantityValidation(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "cart@example.com")
	product := seedProduct(t, e, 10, 100, 5)

	err := e.SetCartItem(ctx, user.ID, product.ID, 3, 0, 0)
	if !errors.Is(err, database.ErrInvalidQuantity) {
		t.Errorf("units 3 with min_qty 5: err = %v, want ErrInvalidQuantity", err)
	}

	if err := e.SetCartItem(ctx, user.ID, product.ID, 10, 1, 0); err != nil {
		t.Fatalf("units 10 with min_qty 5: %v", err)
	}

	// Overwrite, then remove via zero.
	if err := e.SetCartItem(ctx, user.ID, product.ID, 15, 0, 0); err != nil {
		t.Fatalf("overwrite cart line: %v", err)
	}
	if err := e.SetCartItem(ctx, user.ID, product.ID, 0, 0, 0); err != nil {
		t.Fatalf("remove via zero units: %v", err)
	}

	cart, err := e.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart) != 0 {
		t.Errorf("cart has %d lines, want 0", len(cart))
	}
}

func TestAcceptSkipsDeletedProduct(t *testing.T) {
	e, db, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "deleted@example.com")
	product := seedProduct(t, e, 25, 10, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 4, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	if err := e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted); err != nil {
		t.Fatalf("accept with deleted product: %v", err)
	}

	// The final_price snapshot still drives the ledger credit.
	userAfter, err := e.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !userAfter.Outstanding.Equal(decimal.NewFromInt(100)) {
		t.Errorf("outstanding = %s, want 100 from snapshot price", userAfter.Outstanding)
	}
}

func TestOrderTotalPrefersSnapshotPrice(t *testing.T) {
	e, db, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "snapshot@example.com")
	product := seedProduct(t, e, 100, 50, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 2, PackQty: 1, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// A later catalog price change must not move the historical total.
	if _, err := db.ExecContext(ctx, `UPDATE products SET price = 999 WHERE id = $1`, product.ID); err != nil {
		t.Fatalf("reprice product: %v", err)
	}

	total, err := e.OrderTotal(ctx, orderID)
	if err != nil {
		t.Fatalf("order total: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(300)) {
		t.Errorf("total = %s, want 300 (3 qty x snapshot 100)", total)
	}

	_, err = e.OrderTotal(ctx, "ORD-missing")
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("total of missing order: err = %v, want ErrOrderNotFound", err)
	}
}

func TestRecordPaymentTracksStatus(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "payments@example.com")
	product := seedProduct(t, e, 100, 50, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 2, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := e.RecordPayment(ctx, orderID, decimal.NewFromInt(50), "bank", "TXN-1"); err != nil {
		t.Fatalf("first payment: %v", err)
	}

	items, err := e.GetOrderByID(ctx, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if items[0].PaymentStatus != models.PaymentStatusPartiallyPaid {
		t.Errorf("payment status = %q, want partially_paid", items[0].PaymentStatus)
	}

	if _, err := e.RecordPayment(ctx, orderID, decimal.NewFromInt(150), "bank", "TXN-2"); err != nil {
		t.Fatalf("second payment: %v", err)
	}

	items, err = e.GetOrderByID(ctx, orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if items[0].PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("payment status = %q, want paid", items[0].PaymentStatus)
	}

	payments, err := e.GetPayments(ctx, orderID)
	if err != nil {
		t.Fatalf("get payments: %v", err)
	}
	if len(payments) != 2 {
		t.Errorf("have %d payments, want 2", len(payments))
	}
}

func TestListOrdersCursor(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "cursor@example.com")
	product := seedProduct(t, e, 10, 1000, 1)

	for i := 0; i < 15; i++ {
		_, err := e.CreateOrder(ctx, store.CreateOrderRequest{
			UserID: user.ID,
			Items: []store.OrderItemRequest{
				{ProductID: product.ID, Units: 1, ProductName: product.Name},
			},
		})
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
	}

	page1, err := e.ListOrders(ctx, user.ID, "", 10)
	if err != nil {
		t.Fatalf("list orders page 1: %v", err)
	}
	if !page1.HasMore || page1.NextCursor == "" {
		t.Fatal("page 1 should have more results and a next cursor")
	}

	page2, err := e.ListOrders(ctx, user.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("list orders page 2: %v", err)
	}
	if page2.HasMore {
		t.Error("page 2 should not have more results")
	}
}

func TestUpdateOrderStatusMissingOrder(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	err := e.UpdateOrderStatus(context.Background(), "ORD-missing", models.OrderStatusAccepted)
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestSetInventoryFailsFastWhenRowLocked(t *testing.T) {
	e, db, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	product := seedProduct(t, e, 10, 30, 1)

	holder, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		t.Fatalf("begin holder tx: %v", err)
	}
	if _, err := holder.ExecContext(ctx,
		`SELECT 1 FROM products WHERE id = $1 FOR UPDATE`, product.ID); err != nil {
		t.Fatalf("lock product row: %v", err)
	}

	err = e.SetInventory(ctx, product.ID, 40)
	if !errors.Is(err, database.ErrLockTimeout) {
		t.Errorf("set inventory under contention: err = %v, want ErrLockTimeout", err)
	}

	if err := holder.Rollback(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	if err := e.SetInventory(ctx, product.ID, 40); err != nil {
		t.Fatalf("set inventory after release: %v", err)
	}

	productAfter, err := e.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if productAfter.Inventory != 40 {
		t.Errorf("inventory = %d, want 40", productAfter.Inventory)
	}
}

func TestConcurrentAcceptDeductsOnce(t *testing.T) {
	e, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx := context.Background()

	user := seedUser(t, e, "concurrent@example.com")
	product := seedProduct(t, e, 10, 100, 1)

	orderID, err := e.CreateOrder(ctx, store.CreateOrderRequest{
		UserID: user.ID,
		Items: []store.OrderItemRequest{
			{ProductID: product.ID, Units: 5, ProductName: product.Name},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	concurrency := 8
	results := make(chan error, concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			results <- e.UpdateOrderStatus(ctx, orderID, models.OrderStatusAccepted)
		}()
	}
	for i := 0; i < concurrency; i++ {
		if err := <-results; err != nil {
			t.Errorf("concurrent accept %d: %v", i, err)
		}
	}

	productAfter, err := e.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if productAfter.Inventory != 95 {
		t.Errorf("inventory = %d, want 95 (single deduction)", productAfter.Inventory)
	}

	userAfter, err := e.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !userAfter.Outstanding.Equal(decimal.NewFromInt(50)) {
		t.Errorf("outstanding = %s, want 50 (single credit)", userAfter.Outstanding)
	}
}
