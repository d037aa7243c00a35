// Package main runs the verdict and track-record service:
// - Verdict runs over HTTP (thresholds → walk-forward → Monte Carlo → lifecycle)
// - Append-only track-record chains with HMAC checkpoints
// - Chain verification, metrics and export endpoints
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"strategy-verdict-lab/internal/api"
	"strategy-verdict-lab/internal/chain"
	"strategy-verdict-lab/internal/export"
	"strategy-verdict-lab/internal/service"
	"strategy-verdict-lab/internal/storage"
	chstore "strategy-verdict-lab/internal/storage/clickhouse"
	"strategy-verdict-lab/internal/storage/memory"
	"strategy-verdict-lab/internal/storage/migrations"
	pgstore "strategy-verdict-lab/internal/storage/postgres"
	"strategy-verdict-lab/internal/thresholds"
)

// allStores holds all storage implementations.
type allStores struct {
	eventStore      storage.EventStore
	checkpointStore storage.CheckpointStore
	instanceStore   storage.InstanceStore
	thresholdsStore storage.ThresholdsStore
	lifecycleStore  storage.LifecycleStore
	auditStore      storage.VerdictAuditStore
	snapshotStore   storage.MetricSnapshotStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	migrate := flag.Bool("migrate", false, "Apply database migrations on startup")
	hmacKey := flag.String("hmac-key", os.Getenv("CHECKPOINT_HMAC_KEY"), "HMAC key for chain checkpoints")
	checkpointInterval := flag.Int64("checkpoint-interval", chain.DefaultCheckpointInterval, "Events per chain checkpoint")
	apiKeys := flag.String("api-keys", os.Getenv("API_KEYS"), "Comma-separated API keys (empty disables auth)")
	rateLimitRPS := flag.Float64("rate-limit-rps", 10, "Per-key request rate limit (0 disables)")
	rateLimitBurst := flag.Int("rate-limit-burst", 20, "Per-key request burst")
	resolveTimeout := flag.Duration("thresholds-timeout", thresholds.DefaultResolveTimeout, "Threshold lookup timeout")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if *hmacKey == "" {
		logger.Fatal("--hmac-key (or CHECKPOINT_HMAC_KEY) is required: checkpoints are worthless without a key")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Wire the engine and ledger
	key := []byte(*hmacKey)
	resolver := thresholds.NewResolver(stores.thresholdsStore, *resolveTimeout, logger)
	verifier := service.NewVerifier(resolver, nil, nil, stores.lifecycleStore, stores.auditStore, logger)
	chainVerifier := chain.NewVerifier(stores.eventStore, stores.checkpointStore, key)
	exporter := export.NewExporter(stores.eventStore, stores.checkpointStore, stores.instanceStore, chainVerifier)

	server := api.NewServer(
		verifier,
		chain.New(stores.eventStore),
		chain.NewCheckpointer(stores.eventStore, stores.checkpointStore, key, *checkpointInterval),
		chainVerifier,
		exporter,
		stores.eventStore,
		stores.checkpointStore,
		stores.instanceStore,
		stores.snapshotStore,
		logger,
		api.Config{
			APIKeys:        splitKeys(*apiKeys),
			RateLimitRPS:   *rateLimitRPS,
			RateLimitBurst: *rateLimitBurst,
		},
	)

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.Handler(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer shutdownCancel()

		go func() {
			// Second signal forces immediate shutdown
			sig := <-sigCh
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		}()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Starting HTTP server on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	<-ctx.Done()
	logger.Println("Shutdown complete")
}

// createStores creates all required stores, optionally applying migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			eventStore:      memory.NewEventStore(),
			checkpointStore: memory.NewCheckpointStore(),
			instanceStore:   memory.NewInstanceStore(),
			thresholdsStore: memory.NewThresholdsStore(),
			lifecycleStore:  memory.NewLifecycleStore(),
			auditStore:      memory.NewVerdictAuditStore(),
			snapshotStore:   memory.NewMetricSnapshotStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// ClickHouse; migrations hand back a connection to the target database.
	var chConn *chstore.Conn
	if migrate {
		logger.Println("Applying migrations...")
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		chConn, err = migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
	} else {
		chConn, err = chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
	}

	stores := &allStores{
		// PostgreSQL stores (chains, registry, config, lifecycle)
		eventStore:      pgstore.NewEventStore(pool),
		checkpointStore: pgstore.NewCheckpointStore(pool),
		instanceStore:   pgstore.NewInstanceStore(pool),
		thresholdsStore: pgstore.NewThresholdsStore(pool),
		lifecycleStore:  pgstore.NewLifecycleStore(pool),

		// ClickHouse stores (audit trail)
		auditStore:    chstore.NewVerdictAuditStore(chConn),
		snapshotStore: chstore.NewMetricSnapshotStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// splitKeys parses the comma-separated API key list.
func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// envOr returns the environment variable or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
