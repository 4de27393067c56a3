package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgersync-server/src/models"
)

func CreateUser(ctx context.Context, pool *pgxpool.Pool, req models.RegisterRequest, passwordHash string) (*models.RegisterResponse, error) {
	query := `
		INSERT INTO users (username, email, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, email, first_name, last_name, super_admin
	`
	var resp models.RegisterResponse
	err := pool.QueryRow(ctx, query, req.Username, req.Email, req.FirstName, req.LastName, passwordHash).
		Scan(&resp.ID, &resp.Username, &resp.Email, &resp.FirstName, &resp.LastName, &resp.SuperAdmin)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func GetUserByUsername(ctx context.Context, pool *pgxpool.Pool, username string) (*models.User, error) {
	query := `
		SELECT id, username, email, first_name, last_name, password_hash, super_admin, created_at
		FROM users
		WHERE username = $1
	`
	var user models.User
	err := pool.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.SuperAdmin,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("user not found")
		}
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &user, nil
}

func GetUserByID(ctx context.Context, pool *pgxpool.Pool, id int64) (*models.User, error) {
	query := `
		SELECT id, username, email, first_name, last_name, password_hash, super_admin, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.SuperAdmin,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, errors.New("user not found")
	}
	return &user, nil
}

// ListUserIDs feeds the all-users duplicate audit sweep.
func ListUserIDs(ctx context.Context, pool *pgxpool.Pool) ([]int64, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
