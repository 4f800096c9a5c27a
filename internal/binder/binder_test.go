package binder

import (
	"errors"
	"strings"
	"testing"

	"holofit/internal/prior"
	"holofit/internal/scatterer"
)

// treeScatterer exposes an arbitrary parameter tree and remembers the values
// it was rebuilt from.
type treeScatterer struct {
	tree  map[string]prior.Value
	built scatterer.Values
}

func (s *treeScatterer) Parameters() map[string]prior.Value { return s.tree }

func (s *treeScatterer) FromParameters(vals scatterer.Values) (scatterer.Scatterer, error) {
	return &treeScatterer{tree: s.tree, built: vals}, nil
}

func mustUniform(t *testing.T, lo, hi, guess float64) *prior.Uniform {
	t.Helper()
	u, err := prior.NewUniformAt(lo, hi, guess)
	if err != nil {
		t.Fatalf("new uniform: %v", err)
	}
	return u
}

func TestDiscoversOnlyFreePriors(t *testing.T) {
	r := mustUniform(t, 1e-7, 1e-6, 5e-7)
	s := &scatterer.Sphere{
		N: prior.Complex(1.59 + 1e-4i),
		R: r,
		Center: [3]prior.Value{
			prior.Scalar(1e-6), prior.Scalar(-1e-6), prior.Scalar(10e-6),
		},
	}

	b, err := New(s)
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	params := b.Parameters()
	if len(params) != 1 {
		t.Fatalf("len(params) = %d, want 1", len(params))
	}
	if params[0].Name() != "r" {
		t.Fatalf("name = %q, want %q", params[0].Name(), "r")
	}
	if params[0].Guess() != 5e-7 {
		t.Fatalf("guess = %g, want 5e-7", params[0].Guess())
	}
	if prior.IsFixed(params[0]) {
		t.Fatal("fixed prior registered as free parameter")
	}
}

func TestParameterNamesUniqueAndSorted(t *testing.T) {
	x := mustUniform(t, 0, 1e-5, 5e-6)
	r := mustUniform(t, 1e-7, 1e-6, 5e-7)
	s := &scatterer.Sphere{
		N:      prior.Complex(1.59),
		R:      r,
		Center: [3]prior.Value{x, prior.Scalar(0), prior.Scalar(0)},
	}

	b, err := New(s)
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	params := b.Parameters()
	if len(params) != 2 {
		t.Fatalf("len(params) = %d, want 2", len(params))
	}
	// Registration follows sorted original names: center.x before r.
	if params[0].Name() != "center.x" || params[1].Name() != "r" {
		t.Fatalf("names = [%q, %q], want [center.x, r]", params[0].Name(), params[1].Name())
	}
	seen := map[string]bool{}
	for _, p := range params {
		if seen[p.Name()] {
			t.Fatalf("duplicate parameter name %q", p.Name())
		}
		seen[p.Name()] = true
	}
}

func TestComplexPriorSplitsRealImag(t *testing.T) {
	re := mustUniform(t, 1.4, 1.8, 1.59)
	n, err := prior.NewComplexPrior(re, prior.NewFixed(1e-4))
	if err != nil {
		t.Fatalf("new complex prior: %v", err)
	}
	s := &scatterer.Sphere{
		N:      n,
		R:      prior.Scalar(5e-7),
		Center: [3]prior.Value{prior.Scalar(0), prior.Scalar(0), prior.Scalar(0)},
	}

	b, err := New(s)
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	params := b.Parameters()
	if len(params) != 1 || params[0].Name() != "n.real" {
		t.Fatalf("params = %v, want one entry n.real", names(params))
	}

	rebuilt, err := b.MakeFrom(map[string]float64{"n.real": 1.62})
	if err != nil {
		t.Fatalf("make from: %v", err)
	}
	got, err := rebuilt.(*scatterer.Sphere).Index()
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if got != complex(1.62, 1e-4) {
		t.Fatalf("index = %v, want (1.62+0.0001i)", got)
	}
}

func TestTieMergesSharedPrior(t *testing.T) {
	r := mustUniform(t, 1e-7, 1e-6, 5e-7)
	s1 := &scatterer.Sphere{N: prior.Complex(1.59), R: r,
		Center: [3]prior.Value{prior.Scalar(0), prior.Scalar(0), prior.Scalar(0)}}
	s2 := &scatterer.Sphere{N: prior.Complex(1.59), R: r,
		Center: [3]prior.Value{prior.Scalar(2e-6), prior.Scalar(0), prior.Scalar(0)}}

	b, err := New(scatterer.NewSpheres(s1, s2))
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	params := b.Parameters()
	if len(params) != 1 {
		t.Fatalf("params = %v, want single tied entry", names(params))
	}
	if params[0].Name() != "r" {
		t.Fatalf("tie group name = %q, want %q", params[0].Name(), "r")
	}
	group := b.Ties()["r"]
	if len(group) != 2 || group[0] != "0:r" || group[1] != "1:r" {
		t.Fatalf("ties[r] = %v, want [0:r 1:r]", group)
	}

	rebuilt, err := b.MakeFrom(map[string]float64{"r": 4e-7})
	if err != nil {
		t.Fatalf("make from: %v", err)
	}
	radii, err := rebuilt.(*scatterer.Spheres).Radii()
	if err != nil {
		t.Fatalf("radii: %v", err)
	}
	if radii[0] != 4e-7 || radii[1] != 4e-7 {
		t.Fatalf("radii = %v, want both 4e-7", radii)
	}
}

func TestTieThreeWay(t *testing.T) {
	r := mustUniform(t, 1e-7, 1e-6, 5e-7)
	members := make([]*scatterer.Sphere, 3)
	for i := range members {
		members[i] = &scatterer.Sphere{N: prior.Complex(1.59), R: r,
			Center: [3]prior.Value{prior.Scalar(float64(i) * 2e-6), prior.Scalar(0), prior.Scalar(0)}}
	}

	b, err := New(scatterer.NewSpheres(members...))
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	params := b.Parameters()
	if len(params) != 1 || params[0].Name() != "r" {
		t.Fatalf("params = %v, want single group r", names(params))
	}
	group := b.Ties()["r"]
	want := []string{"0:r", "1:r", "2:r"}
	if len(group) != 3 {
		t.Fatalf("ties[r] = %v, want %v", group, want)
	}
	for i := range want {
		if group[i] != want[i] {
			t.Fatalf("ties[r] = %v, want %v", group, want)
		}
	}
}

func TestTieGroupNameTrimsSeparators(t *testing.T) {
	x := mustUniform(t, 0, 1e-5, 5e-6)
	s := &treeScatterer{tree: map[string]prior.Value{
		"center_1.x": x,
		"center_2.x": x,
	}}

	b, err := New(s)
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	params := b.Parameters()
	if len(params) != 1 || params[0].Name() != "x" {
		t.Fatalf("params = %v, want single group x", names(params))
	}
	group := b.Ties()["x"]
	if len(group) != 2 {
		t.Fatalf("ties[x] = %v, want two members", group)
	}

	rebuilt, err := b.MakeFrom(map[string]float64{"x": 7e-6})
	if err != nil {
		t.Fatalf("make from: %v", err)
	}
	built := rebuilt.(*treeScatterer).built
	if built["center_1.x"] != 7e-6 || built["center_2.x"] != 7e-6 {
		t.Fatalf("tie fan-out = %v, want 7e-6 for both members", built)
	}
}

func TestArrayParameterNaming(t *testing.T) {
	y := mustUniform(t, -1, 1, 0.5)
	s := &treeScatterer{tree: map[string]prior.Value{
		"position": prior.Array{
			Dims:   []string{"axis"},
			Labels: []string{"x", "y"},
			Values: []prior.Value{prior.Scalar(0.1), y},
		},
	}}

	b, err := New(s)
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	params := b.Parameters()
	if len(params) != 1 || params[0].Name() != "position_y" {
		t.Fatalf("params = %v, want [position_y]", names(params))
	}

	rebuilt, err := b.MakeFrom(map[string]float64{"position_y": -0.25})
	if err != nil {
		t.Fatalf("make from: %v", err)
	}
	built := rebuilt.(*treeScatterer).built
	if built["position_x"] != 0.1 || built["position_y"] != -0.25 {
		t.Fatalf("built = %v", built)
	}
}

func TestMultiDimensionalArrayRejected(t *testing.T) {
	s := &treeScatterer{tree: map[string]prior.Value{
		"grid": prior.Array{
			Dims:   []string{"row", "col"},
			Labels: []string{"0"},
			Values: []prior.Value{prior.Scalar(1)},
		},
	}}

	_, err := New(s)
	if !errors.Is(err, ErrSpecification) {
		t.Fatalf("err = %v, want ErrSpecification", err)
	}
	if !strings.Contains(err.Error(), "multi-dimensional parameters are not supported") {
		t.Fatalf("err = %v, want multi-dimensional message", err)
	}
}

func TestGuessRoundTrip(t *testing.T) {
	r := mustUniform(t, 1e-7, 1e-6, 5e-7)
	z := mustUniform(t, 5e-6, 2e-5, 1.4e-5)
	s := &scatterer.Sphere{
		N:      prior.Complex(1.59 + 1e-4i),
		R:      r,
		Center: [3]prior.Value{prior.Scalar(1e-6), prior.Scalar(-1e-6), z},
	}

	b, err := New(s)
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	guessed, err := b.Guess()
	if err != nil {
		t.Fatalf("guess: %v", err)
	}

	flat := map[string]float64{}
	for _, p := range b.Parameters() {
		flat[p.Name()] = p.Guess()
	}
	rebuilt, err := b.MakeFrom(flat)
	if err != nil {
		t.Fatalf("make from: %v", err)
	}

	want := guessed.(*scatterer.Sphere)
	got := rebuilt.(*scatterer.Sphere)
	wr, _ := want.Radius()
	gr, _ := got.Radius()
	if wr != gr {
		t.Fatalf("radius = %g, want %g", gr, wr)
	}
	wp, _ := want.Position()
	gp, _ := got.Position()
	if wp != gp {
		t.Fatalf("position = %v, want %v", gp, wp)
	}
	wn, _ := want.Index()
	gn, _ := got.Index()
	if wn != gn {
		t.Fatalf("index = %v, want %v", gn, wn)
	}
}

func TestMakeFromMissingValue(t *testing.T) {
	r := mustUniform(t, 1e-7, 1e-6, 5e-7)
	s := &scatterer.Sphere{
		N:      prior.Complex(1.59),
		R:      r,
		Center: [3]prior.Value{prior.Scalar(0), prior.Scalar(0), prior.Scalar(0)},
	}
	b, err := New(s)
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	if _, err := b.MakeFrom(map[string]float64{}); !errors.Is(err, ErrSpecification) {
		t.Fatalf("err = %v, want ErrSpecification", err)
	}
}

func names(params []prior.Prior) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name()
	}
	return out
}
