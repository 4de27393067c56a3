package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	dbcache "ledgersync-server/src/db"
	db "ledgersync-server/src/db/sql"
	"ledgersync-server/src/handlers"
	"ledgersync-server/src/middleware"
	syncengine "ledgersync-server/src/sync"
)

type Deps struct {
	Pool         *pgxpool.Pool
	PlaidClient  *plaid.APIClient
	Engine       *syncengine.Engine
	Merger       *syncengine.Merger
	Accounts     *db.AccountStore
	Transactions *db.TransactionStore
	ScanCache    *dbcache.AccountScanCache
}

func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", handlers.Login(deps.Pool))
		r.Post("/register", handlers.Register(deps.Pool))
		r.Post("/plaid/webhook", handlers.PlaidWebhook(deps.PlaidClient, deps.Engine, deps.Pool))

		// Protected routes
		r.With(middleware.JWTAuthMiddleware).Group(func(r chi.Router) {
			// User
			r.Get("/user", handlers.GetUser(deps.Pool))

			// Provider items
			r.Post("/plaid/create-link-token", handlers.CreateLinkToken(deps.PlaidClient))
			r.Post("/plaid/exchange-public-token", handlers.ExchangePublicToken(deps.PlaidClient, deps.Pool))
			r.Get("/items", handlers.GetItems(deps.Pool))
			r.Delete("/items/{item_id}", handlers.DeleteItem(deps.Pool))

			// Sync & dedup
			r.Post("/sync/{item_id}", handlers.RunSync(deps.Engine, deps.Pool))
			r.Post("/accounts/audit", handlers.RunDuplicateAudit(deps.Merger))

			// Synced data
			r.Get("/accounts", handlers.GetAccounts(deps.Accounts))
			r.Get("/accounts/{account_id}/transactions", handlers.GetTransactions(deps.Accounts, deps.Transactions))
		})

		// Super Admin Routes
		r.With(middleware.JWTAuthMiddleware, middleware.SuperAdminMiddleware).Group(func(r chi.Router) {
			r.Post("/admin/accounts/audit", handlers.RunDuplicateAuditAll(deps.Merger, deps.Pool))
			r.Post("/admin/cache/clear", handlers.ClearScanCache(deps.ScanCache))
		})
	})

	return r
}
