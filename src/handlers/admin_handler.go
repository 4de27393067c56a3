package handlers

import (
	"log"
	"net/http"

	dbcache "ledgersync-server/src/db"
)

// ClearScanCache drops every cached account snapshot. Useful after manual
// data surgery, when stale snapshots would feed the resolver bad state.
func ClearScanCache(cache *dbcache.AccountScanCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cache.Clear()
		log.Printf("INFO: Account scan cache cleared by user %v", r.Context().Value("user_id"))
		w.WriteHeader(http.StatusNoContent)
	}
}
