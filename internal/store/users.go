package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/database"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/models"
)

func CreateUser(ctx context.Context, db *sql.DB, email, name string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, name, outstanding, created_at, updated_at, version)
		VALUES ($1, $2, 0, NOW(), NOW(), 1)
		RETURNING id, email, name, outstanding, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query, email, name).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Outstanding,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, outstanding, created_at, updated_at, version
		FROM users
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Outstanding,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetOutstanding(ctx context.Context, db *sql.DB, userID int64) (decimal.Decimal, error) {
	var outstanding decimal.Decimal

	err := db.QueryRowContext(ctx,
		`SELECT outstanding FROM users WHERE id = $1`,
		userID).Scan(&outstanding)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, database.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("get outstanding: %w", err)
	}

	return outstanding, nil
}

// AddOutstanding credits amount to the user's outstanding balance.
func AddOutstanding(ctx context.Context, db *sql.DB, userID int64, amount decimal.Decimal) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users
		 SET outstanding = outstanding + $1, updated_at = NOW()
		 WHERE id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("add outstanding: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}

// SubtractOutstanding debits amount from the user's outstanding balance,
// flooring the result at zero.
func SubtractOutstanding(ctx context.Context, db *sql.DB, userID int64, amount decimal.Decimal) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users
		 SET outstanding = GREATEST(outstanding - $1, 0), updated_at = NOW()
		 WHERE id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("subtract outstanding: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}
