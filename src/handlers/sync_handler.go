package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	db "ledgersync-server/src/db/sql"
	"ledgersync-server/src/models"
	syncengine "ledgersync-server/src/sync"
	"ledgersync-server/src/util"
)

// syncOverlap is re-fetched on every incremental run so transactions the
// provider posted late still land.
const syncOverlap = 30 * 24 * time.Hour

func RunSync(engine *syncengine.Engine, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		item, err := db.GetItem(r.Context(), pool, userID, itemID)
		if err != nil {
			http.Error(w, "item not found", http.StatusNotFound)
			log.Printf("ERROR: Failed to get item %d for user %d: %v", itemID, userID, err)
			return
		}

		var since time.Time
		if item.LastSyncedAt != nil {
			since = item.LastSyncedAt.Add(-syncOverlap)
		}

		report, err := engine.Run(r.Context(), userID, item.AccessToken, since)
		if err != nil {
			if errors.Is(err, syncengine.ErrMissingContext) {
				http.Error(w, "item is missing sync context", http.StatusConflict)
			} else {
				http.Error(w, "sync failed", http.StatusBadGateway)
			}
			log.Printf("ERROR: Sync run failed for user %d, item %d: %v", userID, itemID, err)
			return
		}

		if err := db.UpdateLastSyncedAt(r.Context(), pool, item.ID); err != nil {
			log.Printf("ERROR: Failed to update sync checkpoint for item %d: %v", item.ID, err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

func RunDuplicateAudit(merger *syncengine.Merger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		dryRun := parseDryRun(r)

		plan, err := merger.Audit(r.Context(), userID, dryRun)
		if err != nil {
			http.Error(w, "duplicate audit failed", http.StatusInternalServerError)
			log.Printf("ERROR: Duplicate audit failed for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(plan)
	}
}

// RunDuplicateAuditAll is the maintenance sweep over every user, super
// admin only. A failing user is reported in place and does not stop the
// sweep.
func RunDuplicateAuditAll(merger *syncengine.Merger, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dryRun := parseDryRun(r)

		userIDs, err := db.ListUserIDs(r.Context(), pool)
		if err != nil {
			http.Error(w, "failed to list users", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to list users for audit sweep: %v", err)
			return
		}

		var plans []*models.MergePlan
		for _, userID := range userIDs {
			plan, err := merger.Audit(r.Context(), userID, dryRun)
			if err != nil {
				log.Printf("ERROR: Audit sweep failed for user %d: %v", userID, err)
				plans = append(plans, &models.MergePlan{
					UserID:   userID,
					DryRun:   dryRun,
					Failures: []models.MergeFailure{{Detail: err.Error()}},
				})
				continue
			}
			plans = append(plans, plan)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(plans)
	}
}

// PlaidWebhook is the second sync stimulus besides the user-triggered run:
// a verified transactions webhook kicks off a background sync for the
// affected item's owner.
func PlaidWebhook(plaidClient *plaid.APIClient, engine *syncengine.Engine, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		headers := map[string]string{}
		for name := range r.Header {
			headers[name] = r.Header.Get(name)
		}
		ok, err := util.VerifyWebhook(r.Context(), plaidClient, body, headers)
		if err != nil || !ok {
			log.Printf("ERROR: Webhook verification failed: %v", err)
			http.Error(w, "verification failed", http.StatusUnauthorized)
			return
		}

		var payload struct {
			WebhookType string `json:"webhook_type"`
			ItemID      string `json:"item_id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		if payload.WebhookType != "TRANSACTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		item, err := db.GetItemByExternalID(r.Context(), pool, payload.ItemID)
		if err != nil {
			log.Printf("ERROR: Webhook for unknown item %s: %v", payload.ItemID, err)
			http.Error(w, "unknown item", http.StatusNotFound)
			return
		}

		var since time.Time
		if item.LastSyncedAt != nil {
			since = item.LastSyncedAt.Add(-syncOverlap)
		}

		// The webhook response must not wait on a full run. This is the
		// concurrent-trigger path the engine's pre-insert re-check and
		// deterministic ids exist for.
		go func(item *models.Item, since time.Time) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			if _, err := engine.Run(ctx, item.UserID, item.AccessToken, since); err != nil {
				log.Printf("ERROR: Webhook-triggered sync failed for user %d, item %d: %v", item.UserID, item.ID, err)
				return
			}
			if err := db.UpdateLastSyncedAt(ctx, pool, item.ID); err != nil {
				log.Printf("ERROR: Failed to update sync checkpoint for item %d: %v", item.ID, err)
			}
		}(item, since)

		w.WriteHeader(http.StatusAccepted)
	}
}

func parseDryRun(r *http.Request) bool {
	// Merges are destructive; dry run unless explicitly disabled.
	value := r.URL.Query().Get("dry_run")
	if value == "" {
		return true
	}
	dryRun, err := strconv.ParseBool(value)
	if err != nil {
		return true
	}
	return dryRun
}
