package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"ledgersync-server/src/models"
)

// Merger is the out-of-band corrective pass: it finds accounts that slipped
// past sync-time resolution as duplicates, picks a survivor per group, and
// collapses the rest. Merges are destructive, so the default entry point is
// a dry run that only reports the plan.
type Merger struct {
	accounts     AccountStore
	transactions TransactionStore
	cache        ScanCache
	log          zerolog.Logger
}

func NewMerger(accounts AccountStore, transactions TransactionStore, cache ScanCache, log zerolog.Logger) *Merger {
	return &Merger{accounts: accounts, transactions: transactions, cache: cache, log: log}
}

// Audit scans one user's accounts, groups near-duplicates, and, unless
// dryRun is set, merges each group down to its earliest-created member.
// A failure applying one group is recorded and does not stop the others.
func (m *Merger) Audit(ctx context.Context, userID int64, dryRun bool) (*models.MergePlan, error) {
	accounts, err := m.accounts.ScanByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("scan accounts for user %d: %w", userID, err)
	}

	plan := &models.MergePlan{UserID: userID, DryRun: dryRun}
	groups := groupDuplicates(accounts)
	for _, group := range groups {
		plan.Groups = append(plan.Groups, planGroup(accounts, group))
	}

	if dryRun {
		return plan, nil
	}

	for i, group := range plan.Groups {
		if err := m.applyGroup(ctx, userID, group); err != nil {
			plan.Failures = append(plan.Failures, models.MergeFailure{
				SurvivorID: group.SurvivorID,
				Detail:     err.Error(),
			})
			m.log.Error().
				Int64("user_id", userID).
				Str("survivor_id", group.SurvivorID).
				Err(err).
				Msg("merge group failed")
			// Drop the unapplied group from the committed plan.
			plan.Groups[i].RemovedIDs = nil
		}
	}
	if m.cache != nil {
		m.cache.Del(userID)
	}
	return plan, nil
}

func (m *Merger) applyGroup(ctx context.Context, userID int64, group models.MergeGroup) error {
	for _, removedID := range group.RemovedIDs {
		moved, err := m.transactions.ReassignAccount(ctx, removedID, group.SurvivorID)
		if err != nil {
			return fmt.Errorf("re-point transactions from %s: %w", removedID, err)
		}
		if err := m.accounts.Delete(ctx, userID, removedID); err != nil {
			return fmt.Errorf("delete duplicate %s: %w", removedID, err)
		}
		m.log.Info().
			Int64("user_id", userID).
			Str("removed_id", removedID).
			Str("survivor_id", group.SurvivorID).
			Int64("transactions_moved", moved).
			Msg("duplicate account merged")
	}
	return nil
}

// groupDuplicates unions accounts that collide on external id or on the
// fuzzy key (institution + last-4, or identical masked number) and returns
// the index sets of size > 1.
func groupDuplicates(accounts []models.Account) [][]int {
	parent := make([]int, len(accounts))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) { parent[find(a)] = find(b) }

	byKey := make(map[string]int)
	link := func(key string, i int) {
		if key == "" {
			return
		}
		if j, ok := byKey[key]; ok {
			union(i, j)
		} else {
			byKey[key] = i
		}
	}

	for i := range accounts {
		link(externalKey(&accounts[i]), i)
		for _, key := range fuzzyKeys(&accounts[i]) {
			link(key, i)
		}
	}

	// Accounts still pending identity backfill carry no institution to key
	// on, so they are matched pairwise the way the resolver's fallback scan
	// matches them: identical masked number.
	for i := range accounts {
		if !accounts[i].IdentityUnstable && accounts[i].InstitutionName != "" {
			continue
		}
		if accounts[i].AccountNumber == "" {
			continue
		}
		for j := range accounts {
			if j != i && accounts[j].AccountNumber == accounts[i].AccountNumber {
				union(i, j)
			}
		}
	}

	members := make(map[int][]int)
	for i := range accounts {
		root := find(i)
		members[root] = append(members[root], i)
	}

	var groups [][]int
	for _, group := range members {
		if len(group) > 1 {
			sort.Ints(group)
			groups = append(groups, group)
		}
	}
	// Deterministic plan order regardless of map iteration.
	sort.Slice(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })
	return groups
}

func planGroup(accounts []models.Account, group []int) models.MergeGroup {
	survivor := group[0]
	for _, i := range group[1:] {
		a, s := &accounts[i], &accounts[survivor]
		if a.CreatedAt.Before(s.CreatedAt) || (a.CreatedAt.Equal(s.CreatedAt) && a.ID < s.ID) {
			survivor = i
		}
	}

	plan := models.MergeGroup{
		Key:        groupKey(&accounts[survivor]),
		SurvivorID: accounts[survivor].ID,
	}
	for _, i := range group {
		if i != survivor {
			plan.RemovedIDs = append(plan.RemovedIDs, accounts[i].ID)
		}
	}
	sort.Strings(plan.RemovedIDs)
	return plan
}

func externalKey(a *models.Account) string {
	if a.ExternalAccountID == "" {
		return ""
	}
	return "ext:" + a.ExternalAccountID
}

// fuzzyKeys mirrors the resolver's fallback matching so the auditor finds
// exactly the duplicates that matching would have prevented.
func fuzzyKeys(a *models.Account) []string {
	var keys []string
	if inst, last4 := strings.ToLower(a.InstitutionName), lastFour(a.AccountNumber); inst != "" && last4 != "" {
		keys = append(keys, "fuzzy:"+inst+"|"+last4)
	}
	return keys
}

func groupKey(a *models.Account) string {
	if keys := fuzzyKeys(a); len(keys) > 0 {
		return keys[0]
	}
	return externalKey(a)
}
