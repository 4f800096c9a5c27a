package holofit

import (
	"context"
	"errors"
	"math"
	"testing"
)

func testOptics() OpticsSpec {
	return OpticsSpec{
		Nx: 4, Ny: 4,
		Spacing:      0.6e-6,
		PlaneZ:       10e-6,
		MediumIndex:  1.33,
		IllumWavelen: 660e-9,
		Polarization: []float64{1, 0},
	}
}

func concreteSphere(radius float64) *SphereSpec {
	return &SphereSpec{
		Index:  ParamSpec{Value: 1.59},
		Radius: ParamSpec{Value: radius},
	}
}

func TestSimulate(t *testing.T) {
	client, err := New(Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	summary, err := client.Simulate(context.Background(), SimulateRequest{
		Scatterer: ScattererSpec{Sphere: concreteSphere(0.5e-6)},
		Optics:    testOptics(),
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if summary.Points != 16 || len(summary.Values) != 16 {
		t.Fatalf("got %d points, want 16", summary.Points)
	}
	flat := true
	for _, v := range summary.Values {
		if math.Abs(v-1) > 1e-6 {
			flat = false
		}
	}
	if flat {
		t.Fatal("simulated hologram shows no fringes")
	}
}

func TestFitRunAndRuns(t *testing.T) {
	client, err := New(Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()
	ctx := context.Background()

	const target = 0.53e-6
	simulated, err := client.Simulate(ctx, SimulateRequest{
		Scatterer: ScattererSpec{Sphere: concreteSphere(target)},
		Optics:    testOptics(),
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	summary, err := client.Fit(ctx, FitRequest{
		Scatterer: ScattererSpec{Sphere: &SphereSpec{
			Index:  ParamSpec{Value: 1.59},
			Radius: ParamSpec{Kind: "uniform", Lower: 0.4e-6, Upper: 0.7e-6, Guess: 0.5e-6},
		}},
		Optics: testOptics(),
		Data:   simulated.Values,
		Alpha:  &ParamSpec{Kind: "fixed", Value: 1},
	})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("missing run id")
	}
	if got := summary.BestParams["r"]; math.Abs(got-target) > 1e-8 {
		t.Fatalf("best radius = %g, want %g", got, target)
	}
	if summary.InitialGuess["r"] != 0.5e-6 {
		t.Fatalf("initial guess = %+v", summary.InitialGuess)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("unexpected run list: %+v", runs)
	}
	if runs[0].DataPoints != 16 {
		t.Fatalf("run data points = %d, want 16", runs[0].DataPoints)
	}

	run, err := client.Run(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.BestParams["r"] != summary.BestParams["r"] {
		t.Fatalf("persisted best params mismatch: %+v", run.BestParams)
	}

	residuals, err := client.Residuals(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("residuals: %v", err)
	}
	if len(residuals) != 16 {
		t.Fatalf("got %d residuals, want 16", len(residuals))
	}
}

func TestRunNotFound(t *testing.T) {
	client, err := New(Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	if _, err := client.Run(context.Background(), "absent"); err == nil {
		t.Fatal("expected missing-run error")
	}
}

func TestScattererSpecValidation(t *testing.T) {
	if _, err := (ScattererSpec{}).toScatterer(); !errors.Is(err, ErrRequest) {
		t.Fatalf("empty spec: %v", err)
	}
	both := ScattererSpec{
		Sphere:  concreteSphere(0.5e-6),
		Spheres: []SphereSpec{*concreteSphere(0.5e-6)},
	}
	if _, err := both.toScatterer(); !errors.Is(err, ErrRequest) {
		t.Fatalf("ambiguous spec: %v", err)
	}
}

func TestParamSpecKinds(t *testing.T) {
	if _, err := (ParamSpec{Kind: "lognormal"}).toPrior(); !errors.Is(err, ErrRequest) {
		t.Fatalf("unknown kind: %v", err)
	}
	p, err := (ParamSpec{Kind: "uniform", Lower: 1, Upper: 3}).toPrior()
	if err != nil {
		t.Fatalf("uniform: %v", err)
	}
	if p.Guess() != 2 {
		t.Fatalf("uniform guess = %g, want midpoint 2", p.Guess())
	}
	g, err := (ParamSpec{Kind: "gaussian", Mean: 1.5, Std: 0.1}).toPrior()
	if err != nil {
		t.Fatalf("gaussian: %v", err)
	}
	if g.Guess() != 1.5 {
		t.Fatalf("gaussian guess = %g, want 1.5", g.Guess())
	}
}

func TestFitRequiresData(t *testing.T) {
	client, err := New(Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	_, err = client.Fit(context.Background(), FitRequest{
		Scatterer: ScattererSpec{Sphere: concreteSphere(0.5e-6)},
		Optics:    testOptics(),
	})
	if !errors.Is(err, ErrRequest) {
		t.Fatalf("err = %v, want ErrRequest", err)
	}
}
