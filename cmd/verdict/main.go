// Package main computes a deployment verdict offline: trades and backtest
// parameters come from a JSON file, thresholds from PostgreSQL or the
// built-in defaults, and the full verdict result goes to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/service"
	"strategy-verdict-lab/internal/storage"
	"strategy-verdict-lab/internal/storage/memory"
	pgstore "strategy-verdict-lab/internal/storage/postgres"
	"strategy-verdict-lab/internal/thresholds"
)

// inputFile is the JSON shape the -input flag points at.
type inputFile struct {
	StrategyID            string                      `json:"strategyId"`
	StrategyVersion       string                      `json:"strategyVersion"`
	CurrentLifecycleState string                      `json:"currentLifecycleState,omitempty"`
	Trades                []domain.Trade              `json:"trades"`
	BacktestParameters    service.BacktestParameters  `json:"backtestParameters"`
	IntermediateResults   *domain.IntermediateResults `json:"intermediateResults,omitempty"`
}

func main() {
	// Parse flags
	inputPath := flag.String("input", "", "Path to JSON input file (required)")
	strategyID := flag.String("strategy-id", "", "Strategy ID (overrides input file)")
	strategyVersion := flag.String("strategy-version", "", "Strategy version (overrides input file)")
	configVersion := flag.String("config-version", "", "Threshold config version (empty uses the active one)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for thresholds")
	useMemory := flag.Bool("use-memory", false, "Skip the database, use built-in default thresholds")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[verdict] ", log.LstdFlags)

	// Validate required flags
	if *inputPath == "" {
		logger.Fatal("--input is required")
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		logger.Fatalf("read input: %v", err)
	}
	var in inputFile
	if err := json.Unmarshal(data, &in); err != nil {
		logger.Fatalf("parse input: %v", err)
	}
	if *strategyID != "" {
		in.StrategyID = *strategyID
	}
	if *strategyVersion != "" {
		in.StrategyVersion = *strategyVersion
	}
	if in.StrategyID == "" || in.StrategyVersion == "" {
		logger.Fatal("strategyId and strategyVersion are required (input file or flags)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Threshold source
	var thresholdsStore storage.ThresholdsStore = memory.NewThresholdsStore()
	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		thresholdsStore = pgstore.NewThresholdsStore(pool)
	}

	resolver := thresholds.NewResolver(thresholdsStore, 0, logger)
	verifier := service.NewVerifier(resolver, nil, nil, nil, nil, logger)

	logger.Printf("Computing verdict: strategy=%s version=%s trades=%d",
		in.StrategyID, in.StrategyVersion, len(in.Trades))

	out, err := verifier.Verify(ctx, service.VerifyInput{
		StrategyID:      in.StrategyID,
		StrategyVersion: in.StrategyVersion,
		CurrentState:    domain.LifecycleState(in.CurrentLifecycleState),
		Trades:          in.Trades,
		Backtest:        in.BacktestParameters,
		Intermediate:    in.IntermediateResults,
		ConfigVersion:   *configVersion,
	})
	if err != nil {
		logger.Fatalf("verdict failed: %v", err)
	}

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
	} else {
		printVerdict(out)
	}
}

// printVerdict outputs a human-readable verdict.
func printVerdict(out *service.VerifyOutput) {
	fmt.Println()
	fmt.Println("=== Verdict ===")
	fmt.Printf("Run ID:             %s\n", out.RunID)
	fmt.Printf("Strategy:           %s@%s\n", out.Result.StrategyID, out.Result.StrategyVersion)
	fmt.Printf("Verdict:            %s\n", out.Result.Verdict)
	if len(out.Result.ReasonCodes) > 0 {
		fmt.Printf("Reason Codes:       %s\n", strings.Join(out.Result.ReasonCodes, ", "))
	}
	fmt.Println()

	fmt.Println("Scores:")
	fmt.Printf("  Sample Size:      %d\n", out.Result.Scores.SampleSize)
	if c := out.Result.Scores.Composite; c != nil {
		fmt.Printf("  Composite:        %.4f\n", *c)
	}
	if d := out.Result.Scores.WalkForwardDegradationPct; d != nil {
		fmt.Printf("  WF Degradation:   %.2f%%\n", *d)
	}
	if p := out.Result.Scores.MonteCarloRuinProbability; p != nil {
		fmt.Printf("  Ruin Probability: %.4f\n", *p)
	}
	fmt.Println()

	fmt.Println("Lifecycle:")
	fmt.Printf("  Decision:         %s (%s -> %s)\n", out.Decision.Kind, out.Decision.From, out.Decision.To)
	fmt.Printf("  State:            %s\n", out.LifecycleState)
	fmt.Println()

	fmt.Printf("Config Source:      %s\n", out.ConfigSource)
	fmt.Printf("Thresholds Hash:    %s\n", out.Result.ThresholdsUsed.ThresholdsHash)
	fmt.Printf("Monte Carlo Seed:   %d\n", out.MonteCarloSeed)

	if len(out.Result.Warnings) > 0 {
		fmt.Println()
		fmt.Println("Warnings:")
		for _, wmsg := range out.Result.Warnings {
			fmt.Printf("  - %s\n", wmsg)
		}
	}
}
