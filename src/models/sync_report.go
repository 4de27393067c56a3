package models

// EntityCounts tallies per-item outcomes for one entity kind in a sync run.
type EntityCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ItemFailure records one item that was skipped during a sync run. The run
// itself keeps going; the caller decides whether the failures warrant a
// warning to the user.
type ItemFailure struct {
	Kind       string `json:"kind"` // "account" or "transaction"
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// SyncReport is the structured summary of one sync run.
type SyncReport struct {
	UserID       int64         `json:"user_id"`
	Accounts     EntityCounts  `json:"accounts"`
	Transactions EntityCounts  `json:"transactions"`
	Failures     []ItemFailure `json:"failures"`
}
