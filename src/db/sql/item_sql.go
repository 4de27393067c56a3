package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ledgersync-server/src/models"
)

func SaveItem(ctx context.Context, pool *pgxpool.Pool, userID int64, externalItemID, accessToken, institutionID, institutionName string) error {
	query := `
		INSERT INTO items (user_id, external_item_id, access_token, institution_id, institution_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_item_id) DO NOTHING
	`
	_, err := pool.Exec(ctx, query, userID, externalItemID, accessToken, institutionID, institutionName)
	return err
}

func GetItemsByUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Item, error) {
	query := `
		SELECT id, user_id, external_item_id, access_token, institution_id, institution_name, last_synced_at, created_at
		FROM items WHERE user_id = $1
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		err := rows.Scan(&item.ID, &item.UserID, &item.ExternalItemID, &item.AccessToken, &item.InstitutionID, &item.InstitutionName, &item.LastSyncedAt, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func GetItem(ctx context.Context, pool *pgxpool.Pool, userID, itemID int64) (*models.Item, error) {
	query := `
		SELECT id, user_id, external_item_id, access_token, institution_id, institution_name, last_synced_at, created_at
		FROM items WHERE user_id = $1 AND id = $2
	`
	var item models.Item
	err := pool.QueryRow(ctx, query, userID, itemID).
		Scan(&item.ID, &item.UserID, &item.ExternalItemID, &item.AccessToken, &item.InstitutionID, &item.InstitutionName, &item.LastSyncedAt, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemByExternalID looks an item up by the provider's id; this is the
// webhook path, where no authenticated user is on the request.
func GetItemByExternalID(ctx context.Context, pool *pgxpool.Pool, externalItemID string) (*models.Item, error) {
	query := `
		SELECT id, user_id, external_item_id, access_token, institution_id, institution_name, last_synced_at, created_at
		FROM items WHERE external_item_id = $1
	`
	var item models.Item
	err := pool.QueryRow(ctx, query, externalItemID).
		Scan(&item.ID, &item.UserID, &item.ExternalItemID, &item.AccessToken, &item.InstitutionID, &item.InstitutionName, &item.LastSyncedAt, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateLastSyncedAt(ctx context.Context, pool *pgxpool.Pool, itemID int64) error {
	query := `UPDATE items SET last_synced_at = NOW() WHERE id = $1`
	_, err := pool.Exec(ctx, query, itemID)
	return err
}

func DeleteItem(ctx context.Context, pool *pgxpool.Pool, userID, itemID int64) error {
	query := `DELETE FROM items WHERE id = $1 AND user_id = $2`
	_, err := pool.Exec(ctx, query, itemID, userID)
	return err
}
