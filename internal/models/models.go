package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID          int64           `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Outstanding decimal.Decimal `json:"outstanding"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	FeaturedImage string          `json:"featured_image,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Inventory     int             `json:"inventory"`
	MinQty        int             `json:"min_qty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// CartItem is one product line in a user's cart, joined with the live
// catalog fields needed for checkout.
type CartItem struct {
	UserID        int64           `json:"user_id"`
	ProductID     int64           `json:"product_id"`
	Units         int             `json:"units"`
	PackQty       int             `json:"pack_qty"`
	BoxQty        int             `json:"box_qty"`
	ProductName   string          `json:"product_name"`
	FeaturedImage string          `json:"featured_image,omitempty"`
	Price         decimal.Decimal `json:"price"`
	MinQty        int             `json:"min_qty"`
	AddedAt       time.Time       `json:"added_at"`
}

// OrderItem is one line of an order. An order is stored as N such rows
// sharing one OrderID; the order-level fields (Status, PaymentStatus,
// ShippingAddress, Remarks) are carried on every row. ProductName,
// FeaturedImage and FinalPrice are snapshots taken at creation and never
// updated afterwards.
type OrderItem struct {
	ID              int64            `json:"id"`
	OrderID         string           `json:"order_id"`
	UserID          int64            `json:"user_id"`
	ProductID       int64            `json:"product_id"`
	ProductName     string           `json:"product_name"`
	FeaturedImage   string           `json:"featured_image,omitempty"`
	Units           int              `json:"units"`
	PackQty         int              `json:"pack_qty"`
	BoxQty          int              `json:"box_qty"`
	AcceptedUnits   int              `json:"accepted_units"`
	AdminNotes      string           `json:"admin_notes,omitempty"`
	FinalPrice      *decimal.Decimal `json:"final_price,omitempty"`
	Status          OrderStatus      `json:"status"`
	PaymentStatus   PaymentStatus    `json:"payment_status"`
	ShippingAddress string           `json:"shipping_address,omitempty"`
	Remarks         string           `json:"remarks,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// RequestedQty is the total fulfillment quantity of the line across the
// three quantity dimensions. Inventory deduction and order totals both
// use this figure, even when AcceptedUnits is set.
func (i OrderItem) RequestedQty() int {
	return i.Units + i.PackQty + i.BoxQty
}

type Payment struct {
	ID        int64           `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
}
