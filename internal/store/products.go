package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/database"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/models"
)

type CreateProductRequest struct {
	SKU           string
	Name          string
	Description   string
	FeaturedImage string
	Price         decimal.Decimal
	Inventory     int
	MinQty        int
}

func CreateProduct(ctx context.Context, db *sql.DB, req CreateProductRequest) (*models.Product, error) {
	if req.MinQty < 1 {
		req.MinQty = 1
	}

	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, description, featured_image, price, inventory, min_qty, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING id, sku, name, description, featured_image, price, inventory, min_qty, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query,
		req.SKU, req.Name, req.Description, req.FeaturedImage, req.Price, req.Inventory, req.MinQty).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.FeaturedImage,
		&product.Price,
		&product.Inventory,
		&product.MinQty,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT id, sku, name, description, featured_image, price, inventory, min_qty, created_at, updated_at, version
		FROM products
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.FeaturedImage,
		&product.Price,
		&product.Inventory,
		&product.MinQty,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func SetInventory(ctx context.Context, q Querier, productID int64, inventory int) error {
	if inventory < 0 {
		inventory = 0
	}

	result, err := q.ExecContext(ctx,
		`UPDATE products
		 SET inventory = $1, updated_at = NOW()
		 WHERE id = $2`,
		inventory, productID)
	if err != nil {
		return fmt.Errorf("set inventory: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// DeductInventory locks the product row, subtracts qty from its inventory
// and floors the result at zero. A missing product is a silent skip so that
// accepting a historical order whose product was deleted still succeeds.
func DeductInventory(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	var inventory int

	err := tx.QueryRowContext(ctx,
		`SELECT inventory FROM products WHERE id = $1 FOR UPDATE`,
		productID).Scan(&inventory)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("lock product %d: %w", productID, err)
	}

	newInventory := inventory - qty
	if newInventory < 0 {
		newInventory = 0
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE products
		 SET inventory = $1, updated_at = NOW()
		 WHERE id = $2`,
		newInventory, productID)
	if err != nil {
		return fmt.Errorf("deduct inventory for product %d: %w", productID, err)
	}

	return nil
}

// LockProductNoWait locks the product row without waiting on a concurrent
// holder, so admin adjustments fail fast instead of queueing behind a long
// accept transaction.
func LockProductNoWait(ctx context.Context, tx *sql.Tx, productID int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT id, sku, name, description, featured_image, price, inventory, min_qty, created_at, updated_at, version
		FROM products
		WHERE id = $1
		FOR UPDATE NOWAIT`

	err := tx.QueryRowContext(ctx, query, productID).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.FeaturedImage,
		&product.Price,
		&product.Inventory,
		&product.MinQty,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "55P03" {
			return nil, database.ErrLockTimeout
		}
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product (nowait): %w", err)
	}

	return product, nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, sku, name, description, featured_image, price, inventory, min_qty, created_at, updated_at, version
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.FeaturedImage,
			&product.Price,
			&product.Inventory,
			&product.MinQty,
			&product.CreatedAt,
			&product.UpdatedAt,
			&product.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
