// Package holofit is the public facade: simulate holograms, fit models to
// observed data and browse persisted fit runs.
package holofit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"holofit/internal/constraint"
	"holofit/internal/fit"
	"holofit/internal/model"
	"holofit/internal/optics"
	"holofit/internal/record"
	"holofit/internal/storage"
	"holofit/internal/theory"
)

const defaultDBPath = "holofit.db"

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store storage.Store
	init  bool
}

type SimulateRequest struct {
	Scatterer ScattererSpec `json:"scatterer"`
	Optics    OpticsSpec    `json:"optics"`
	Theory    string        `json:"theory,omitempty"`
	Alpha     float64       `json:"alpha,omitempty"`
}

type SimulateSummary struct {
	Points int
	Values []float64
}

type FitRequest struct {
	Scatterer ScattererSpec `json:"scatterer"`
	Optics    OpticsSpec    `json:"optics"`
	// Data is the observed hologram, row-major over the detector grid.
	Data   []float64  `json:"data"`
	Theory string     `json:"theory,omitempty"`
	Alpha  *ParamSpec `json:"alpha,omitempty"`
	// LimitOverlaps enables the cluster overlap constraint with the given
	// fraction; negative means the default fraction.
	LimitOverlaps  *float64 `json:"limit_overlaps,omitempty"`
	MaxEvaluations int      `json:"max_evaluations,omitempty"`
}

type FitSummary struct {
	RunID        string
	Theory       string
	InitialGuess map[string]float64
	BestParams   map[string]float64
	Chisq        float64
	RedChisq     float64
	Evaluations  int
	Converged    bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Theory       string
	DataPoints   int
	Chisq        float64
	Converged    bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Simulate renders a synthetic hologram for a fully concrete scatterer.
func (c *Client) Simulate(_ context.Context, req SimulateRequest) (SimulateSummary, error) {
	s, err := req.Scatterer.toScatterer()
	if err != nil {
		return SimulateSummary{}, err
	}
	schema, err := req.Optics.toSchema()
	if err != nil {
		return SimulateSummary{}, err
	}
	alpha := req.Alpha
	if alpha == 0 {
		alpha = 1
	}
	values, err := theory.CalcHologram(schema, s, alpha, req.Theory, schema.MediumIndex, schema.IllumWavelen, schema.IllumPolarization)
	if err != nil {
		return SimulateSummary{}, err
	}
	return SimulateSummary{Points: len(values), Values: values}, nil
}

// Fit runs a model fit against the observed data and persists the resulting
// run record.
func (c *Client) Fit(ctx context.Context, req FitRequest) (FitSummary, error) {
	if len(req.Data) == 0 {
		return FitSummary{}, fmt.Errorf("%w: observed data is required", ErrRequest)
	}
	s, err := req.Scatterer.toScatterer()
	if err != nil {
		return FitSummary{}, err
	}
	schema, err := req.Optics.toSchema()
	if err != nil {
		return FitSummary{}, err
	}
	frame, err := optics.NewFrame(schema, req.Data)
	if err != nil {
		return FitSummary{}, err
	}

	cfg := model.Config{
		Scatterer: s,
		Calc:      theory.CalcHologram,
		Theory:    req.Theory,
	}
	if req.Alpha != nil {
		alpha, err := req.Alpha.toPrior()
		if err != nil {
			return FitSummary{}, fmt.Errorf("alpha: %w", err)
		}
		cfg.Alpha = alpha
	}
	if req.LimitOverlaps != nil {
		if *req.LimitOverlaps < 0 {
			cfg.Constraints = append(cfg.Constraints, constraint.NewLimitOverlaps())
		} else {
			cfg.Constraints = append(cfg.Constraints, constraint.LimitOverlaps{Fraction: *req.LimitOverlaps})
		}
	}
	m, err := model.New(cfg)
	if err != nil {
		return FitSummary{}, err
	}
	guess := m.GuessDict()

	fitter := fit.New()
	fitter.MaxEvaluations = req.MaxEvaluations
	result, err := fitter.Fit(ctx, m, frame)
	if err != nil {
		return FitSummary{}, err
	}

	if err := c.ensureStore(ctx); err != nil {
		return FitSummary{}, err
	}
	run := record.FitRun{
		VersionedRecord: record.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:           uuid.NewString(),
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Theory:       m.Theory(),
		DataPoints:   len(req.Data),
		InitialGuess: guess,
		BestParams:   result.Values,
		Chisq:        result.Chisq,
		RedChisq:     result.RedChisq,
		Evaluations:  result.Evaluations,
		Converged:    result.Converged,
	}
	if err := c.store.SaveFitRun(ctx, run); err != nil {
		return FitSummary{}, err
	}
	if residual, err := m.Residual(copyValues(result.Values), frame); err == nil {
		if err := c.store.SaveResidualHistory(ctx, run.ID, residual); err != nil {
			return FitSummary{}, err
		}
	}

	return FitSummary{
		RunID:        run.ID,
		Theory:       run.Theory,
		InitialGuess: guess,
		BestParams:   result.Values,
		Chisq:        result.Chisq,
		RedChisq:     result.RedChisq,
		Evaluations:  result.Evaluations,
		Converged:    result.Converged,
	}, nil
}

// Runs lists persisted fit runs, oldest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListFitRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAtUTC,
			Theory:       run.Theory,
			DataPoints:   run.DataPoints,
			Chisq:        run.Chisq,
			Converged:    run.Converged,
		})
	}
	return out, nil
}

// Run returns one persisted fit run by id.
func (c *Client) Run(ctx context.Context, runID string) (record.FitRun, error) {
	if runID == "" {
		return record.FitRun{}, errors.New("run id is required")
	}
	if err := c.ensureStore(ctx); err != nil {
		return record.FitRun{}, err
	}
	run, ok, err := c.store.GetFitRun(ctx, runID)
	if err != nil {
		return record.FitRun{}, err
	}
	if !ok {
		return record.FitRun{}, fmt.Errorf("fit run not found: %s", runID)
	}
	return run, nil
}

// Residuals returns the persisted best-fit residual vector of a run.
func (c *Client) Residuals(ctx context.Context, runID string) ([]float64, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	residual, ok, err := c.store.GetResidualHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("residuals not found for run id: %s", runID)
	}
	return residual, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.init {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.init = true
	return nil
}

func copyValues(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
