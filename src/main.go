package main

import (
	"context"
	"log"
	"net/http"

	"ledgersync-server/src/api"
	"ledgersync-server/src/config"
	dbconn "ledgersync-server/src/db"
	db "ledgersync-server/src/db/sql"
	"ledgersync-server/src/logger"
	"ledgersync-server/src/provider"
	syncengine "ledgersync-server/src/sync"
)

func main() {
	cfg := config.Load()
	zlog := logger.New()

	// Connect to database
	pool, err := dbconn.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB connection failed: %v", err)
	}
	defer pool.Close()

	scanCache, err := dbconn.NewAccountScanCache()
	if err != nil {
		log.Fatalf("Cache init failed: %v", err)
	}

	plaidClient := provider.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
	providerClient := provider.NewClient(plaidClient, cfg.SyncPageSize)

	accounts := db.NewAccountStore(pool, scanCache)
	transactions := db.NewTransactionStore(pool)

	engine := syncengine.NewEngine(providerClient, accounts, transactions, scanCache, zlog, syncengine.Options{
		WorkerLimit:  cfg.SyncWorkerLimit,
		MaxRetries:   cfg.SyncMaxRetries,
		RetryBackoff: cfg.SyncRetryBackoff,
		LookbackDays: cfg.SyncLookbackDays,
	})
	merger := syncengine.NewMerger(accounts, transactions, scanCache, zlog)

	// Router
	router := api.NewRouter(api.Deps{
		Pool:         pool,
		PlaidClient:  plaidClient,
		Engine:       engine,
		Merger:       merger,
		Accounts:     accounts,
		Transactions: transactions,
		ScanCache:    scanCache,
	})

	log.Println("API server running on port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}
