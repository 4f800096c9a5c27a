package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"holofit/internal/storage"
	holoapi "holofit/pkg/holofit"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "simulate":
		return runSimulate(ctx, args[1:])
	case "fit":
		return runFit(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "residuals":
		return runResiduals(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: holofitctl <simulate|fit|runs|show|residuals> [flags]", msg)
}

func runSimulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", "", "simulate config JSON path")
	outPath := fs.String("out", "", "write hologram values JSON to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("simulate requires -config")
	}

	req, err := loadSimulateRequest(*configPath)
	if err != nil {
		return err
	}

	client, err := holoapi.New(holoapi.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Simulate(ctx, req)
	if err != nil {
		return err
	}

	if *outPath != "" {
		if err := writeValues(*outPath, summary.Values); err != nil {
			return err
		}
		fmt.Printf("simulated points=%d out=%s\n", summary.Points, *outPath)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(summary.Values)
}

func runFit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	configPath := fs.String("config", "", "fit config JSON path")
	dataPath := fs.String("data", "", "observed hologram JSON path (overrides data in config)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "holofit.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("fit requires -config")
	}

	req, err := loadFitRequest(*configPath)
	if err != nil {
		return err
	}
	if *dataPath != "" {
		data, err := readValues(*dataPath)
		if err != nil {
			return err
		}
		req.Data = data
	}

	client, err := holoapi.New(holoapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Fit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("fit completed run_id=%s theory=%s evaluations=%d converged=%t\n",
		summary.RunID, summary.Theory, summary.Evaluations, summary.Converged)
	for _, name := range sortedNames(summary.BestParams) {
		fmt.Printf("param=%s guess=%.6g best=%.6g\n", name, summary.InitialGuess[name], summary.BestParams[name])
	}
	fmt.Printf("chisq=%.6g red_chisq=%.6g\n", summary.Chisq, summary.RedChisq)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "holofit.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := holoapi.New(holoapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, holoapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s theory=%s points=%d chisq=%.6g converged=%t\n",
			r.RunID, r.CreatedAtUTC, r.Theory, r.DataPoints, r.Chisq, r.Converged)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "holofit.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("show requires -run-id")
	}

	client, err := holoapi.New(holoapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	run, err := client.Run(ctx, *runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func runResiduals(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("residuals", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "holofit.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("residuals requires -run-id")
	}

	client, err := holoapi.New(holoapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	residuals, err := client.Residuals(ctx, *runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(residuals)
}
