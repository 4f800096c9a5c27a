package storage

import (
	"context"

	"holofit/internal/record"
)

// Store defines persistence operations for fit-run artifacts.
type Store interface {
	Init(ctx context.Context) error
	SaveFitRun(ctx context.Context, run record.FitRun) error
	GetFitRun(ctx context.Context, id string) (record.FitRun, bool, error)
	ListFitRuns(ctx context.Context) ([]record.FitRun, error)
	SaveResidualHistory(ctx context.Context, runID string, history []float64) error
	GetResidualHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
