package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sphereConfig = `{
	"scatterer": {"sphere": {
		"index": {"value": 1.59},
		"radius": {"value": 5.3e-7},
		"center": [{"value": 0}, {"value": 0}, {"value": 0}]
	}},
	"optics": {
		"nx": 4, "ny": 4,
		"spacing": 6e-7,
		"plane_z": 1e-5,
		"medium_index": 1.33,
		"illum_wavelen": 6.6e-7,
		"polarization": [1, 0]
	}
}`

const fitConfig = `{
	"scatterer": {"sphere": {
		"index": {"value": 1.59},
		"radius": {"kind": "uniform", "lower": 4e-7, "upper": 7e-7, "guess": 5e-7},
		"center": [{"value": 0}, {"value": 0}, {"value": 0}]
	}},
	"optics": {
		"nx": 4, "ny": 4,
		"spacing": 6e-7,
		"plane_z": 1e-5,
		"medium_index": 1.33,
		"illum_wavelen": 6.6e-7,
		"polarization": [1, 0]
	},
	"alpha": {"kind": "fixed", "value": 1}
}`

func TestRunDispatchErrors(t *testing.T) {
	ctx := context.Background()
	if err := run(ctx, nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("missing command: %v", err)
	}
	if err := run(ctx, []string{"mutate"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("unknown command: %v", err)
	}
	if err := run(ctx, []string{"simulate"}); err == nil || !strings.Contains(err.Error(), "-config") {
		t.Fatalf("simulate without config: %v", err)
	}
	if err := run(ctx, []string{"fit"}); err == nil || !strings.Contains(err.Error(), "-config") {
		t.Fatalf("fit without config: %v", err)
	}
	if err := run(ctx, []string{"show", "-store", "memory"}); err == nil || !strings.Contains(err.Error(), "-run-id") {
		t.Fatalf("show without run id: %v", err)
	}
	if err := run(ctx, []string{"residuals", "-store", "memory"}); err == nil || !strings.Contains(err.Error(), "-run-id") {
		t.Fatalf("residuals without run id: %v", err)
	}
	if err := run(ctx, []string{"runs", "-store", "memory", "-limit", "0"}); err == nil {
		t.Fatal("expected limit validation error")
	}
}

func TestSimulateCommandWritesValues(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "simulate.json")
	if err := os.WriteFile(configPath, []byte(sphereConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	outPath := filepath.Join(dir, "hologram.json")

	if err := run(context.Background(), []string{"simulate", "-config", configPath, "-out", outPath}); err != nil {
		t.Fatalf("simulate command: %v", err)
	}

	values, err := readValues(outPath)
	if err != nil {
		t.Fatalf("read simulated values: %v", err)
	}
	if len(values) != 16 {
		t.Fatalf("got %d values, want 16", len(values))
	}
}

func TestFitCommandRecoversSimulatedData(t *testing.T) {
	if testing.Short() {
		t.Skip("full fit pipeline")
	}
	dir := t.TempDir()
	simulatePath := filepath.Join(dir, "simulate.json")
	if err := os.WriteFile(simulatePath, []byte(sphereConfig), 0o644); err != nil {
		t.Fatalf("write simulate config: %v", err)
	}
	dataPath := filepath.Join(dir, "hologram.json")
	if err := run(context.Background(), []string{"simulate", "-config", simulatePath, "-out", dataPath}); err != nil {
		t.Fatalf("simulate command: %v", err)
	}

	fitPath := filepath.Join(dir, "fit.json")
	if err := os.WriteFile(fitPath, []byte(fitConfig), 0o644); err != nil {
		t.Fatalf("write fit config: %v", err)
	}
	args := []string{"fit", "-store", "memory", "-config", fitPath, "-data", dataPath}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("fit command: %v", err)
	}
}

func TestRunsCommandEmptyStore(t *testing.T) {
	if err := run(context.Background(), []string{"runs", "-store", "memory"}); err != nil {
		t.Fatalf("runs command on empty store: %v", err)
	}
}
