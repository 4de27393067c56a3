package models

import "time"

// Item is one linked provider connection for a user. The access token is
// what the sync engine trades for account and transaction pages.
type Item struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	ExternalItemID  string     `json:"external_item_id"`
	AccessToken     string     `json:"-"`
	InstitutionID   string     `json:"institution_id"`
	InstitutionName string     `json:"institution_name"`
	LastSyncedAt    *time.Time `json:"last_synced_at"`
	CreatedAt       time.Time  `json:"created_at"`
}
