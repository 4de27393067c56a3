package models

// MergeGroup is a set of accounts judged to be the same real-world account.
// The survivor keeps its ID; every transaction on a removed account is
// re-pointed at the survivor before the removed account is deleted.
type MergeGroup struct {
	Key        string   `json:"key"`
	SurvivorID string   `json:"survivor_id"`
	RemovedIDs []string `json:"removed_ids"`
}

// MergeFailure records one group whose merge could not be applied. Other
// groups in the same audit still proceed.
type MergeFailure struct {
	SurvivorID string `json:"survivor_id"`
	Detail     string `json:"detail"`
}

// MergePlan is the result of a duplicate audit. With DryRun set, the plan
// describes what would happen without anything having been mutated.
type MergePlan struct {
	UserID   int64          `json:"user_id"`
	DryRun   bool           `json:"dry_run"`
	Groups   []MergeGroup   `json:"groups"`
	Failures []MergeFailure `json:"failures,omitempty"`
}
