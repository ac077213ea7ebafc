package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/database"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/models"
)

// AddPayment appends a partial-payment record. The log is append-only.
func AddPayment(ctx context.Context, tx *sql.Tx, orderID string, amount decimal.Decimal, method, reference string) (*models.Payment, error) {
	payment := &models.Payment{}

	query := `
		INSERT INTO order_payments (order_id, amount, method, reference, paid_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, order_id, amount, method, reference, paid_at`

	err := tx.QueryRowContext(ctx, query, orderID, amount, method, reference).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Amount,
		&payment.Method,
		&payment.Reference,
		&payment.PaidAt,
	)
	if err != nil {
		return nil, fmt.Errorf("add payment: %w", err)
	}

	return payment, nil
}

// SumPayments returns the amount paid against an order so far.
func SumPayments(ctx context.Context, q Querier, orderID string) (decimal.Decimal, error) {
	var paid decimal.Decimal

	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM order_payments WHERE order_id = $1`,
		orderID).Scan(&paid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}

	return paid, nil
}

// GetPayments returns the payment history of an order, oldest first.
func GetPayments(ctx context.Context, db *sql.DB, orderID string) ([]models.Payment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, amount, method, reference, paid_at
		 FROM order_payments
		 WHERE order_id = $1
		 ORDER BY paid_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

// SetPaymentStatus updates the payment_status field on every line item of
// the order.
func SetPaymentStatus(ctx context.Context, tx *sql.Tx, orderID string, status models.PaymentStatus) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE order_items SET payment_status = $1 WHERE order_id = $2`,
		status, orderID)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
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
