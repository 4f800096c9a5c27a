// Package model wraps a bound scatterer description together with auxiliary
// optics parameters and exposes the residual between simulated and observed
// holograms to an external optimizer.
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"holofit/internal/binder"
	"holofit/internal/constraint"
	"holofit/internal/optics"
	"holofit/internal/prior"
	"holofit/internal/scatterer"
)

var (
	ErrSpecification    = prior.ErrSpecification
	ErrMissingParameter = errors.New("missing parameter")
)

// CalcFunc computes a simulated hologram on a detector schema. It is the
// model's only view of the scattering physics and may fail on numerically
// degenerate inputs.
type CalcFunc func(schema *optics.Schema, s scatterer.Scatterer, scaling float64, theory string, mediumIndex, illumWavelen float64, illumPolarization []float64) ([]float64, error)

// Config assembles a model. MediumIndex, IllumWavelen, IllumPolarization and
// Alpha may each be a constant, a free prior, a complex pair, or a keyed
// group / labeled array of those; nil means "resolve from the data's schema
// at evaluation time".
type Config struct {
	Scatterer scatterer.Scatterer
	Binder    *binder.Binder
	Calc      CalcFunc

	MediumIndex       prior.Value
	IllumWavelen      prior.Value
	IllumPolarization prior.Value
	Theory            string
	Alpha             prior.Value

	Constraints []constraint.Constraint
}

// Base holds the bound scatterer, the combined free-parameter list and the
// slot table used to resolve auxiliary parameters by name.
type Base struct {
	scatterer   *binder.Binder
	constraints []constraint.Constraint
	theory      string

	params   []prior.Prior
	slots    map[string]prior.Value
	subNames map[string][]string
}

// Model adds the hologram scaling parameter alpha and the residual
// computation on top of Base.
type Model struct {
	Base
	calc CalcFunc
}

// New builds a fitting model. At least one free parameter must remain after
// registration.
func New(cfg Config) (*Model, error) {
	base, err := newBase(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Calc == nil {
		return nil, fmt.Errorf("%w: a calculation function is required", ErrSpecification)
	}
	m := &Model{Base: *base, calc: cfg.Calc}
	if err := m.useParameter(cfg.Alpha, "alpha"); err != nil {
		return nil, err
	}
	if len(m.params) == 0 {
		return nil, fmt.Errorf("%w: must specify at least one parameter to vary", ErrSpecification)
	}
	return m, nil
}

func newBase(cfg Config) (*Base, error) {
	bound := cfg.Binder
	if bound == nil {
		var err error
		bound, err = binder.New(cfg.Scatterer)
		if err != nil {
			return nil, err
		}
	}
	theory := cfg.Theory
	if theory == "" {
		theory = "auto"
	}
	b := &Base{
		scatterer:   bound,
		constraints: append([]constraint.Constraint(nil), cfg.Constraints...),
		theory:      theory,
		params:      append([]prior.Prior(nil), bound.Parameters()...),
		slots:       map[string]prior.Value{},
		subNames:    map[string][]string{},
	}
	// Registration order is fixed: medium index, wavelength, polarization.
	if err := b.useParameter(cfg.MediumIndex, "medium_index"); err != nil {
		return nil, err
	}
	if err := b.useParameter(cfg.IllumWavelen, "illum_wavelen"); err != nil {
		return nil, err
	}
	if err := b.useParameter(cfg.IllumPolarization, "illum_polarization"); err != nil {
		return nil, err
	}
	return b, nil
}

// useParameter registers an auxiliary value under a role name, reusing the
// binder's complex/group/array naming rules. Free priors without a name are
// named after their role and appended to the combined parameter list.
func (b *Base) useParameter(v prior.Value, name string) error {
	if v == nil {
		return nil
	}
	switch p := v.(type) {
	case prior.Group:
		keys := sortedKeys(p)
		b.subNames[name] = keys
		for _, key := range keys {
			if err := b.useParameter(p[key], name+"_"+key); err != nil {
				return err
			}
		}
	case prior.Array:
		if len(p.Dims) > 1 {
			return fmt.Errorf("%w: multi-dimensional parameters are not supported", ErrSpecification)
		}
		if len(p.Labels) != len(p.Values) {
			return fmt.Errorf("%w: array has %d labels for %d values", ErrSpecification, len(p.Labels), len(p.Values))
		}
		b.subNames[name] = append([]string(nil), p.Labels...)
		for i, label := range p.Labels {
			if err := b.useParameter(p.Values[i], name+"_"+label); err != nil {
				return err
			}
		}
	case *prior.ComplexPrior:
		re := b.adoptPrior(p.Real, name+".real")
		im := b.adoptPrior(p.Imag, name+".imag")
		b.slots[name] = &prior.ComplexPrior{Real: re, Imag: im}
	case prior.Prior:
		b.slots[name] = b.adoptPrior(p, name)
	default:
		b.slots[name] = v
	}
	return nil
}

// adoptPrior copies a prior into the model, naming unnamed ones after their
// role and appending free ones to the combined parameter list.
func (b *Base) adoptPrior(p prior.Prior, role string) prior.Prior {
	name := p.Name()
	if name == "" {
		name = role
	}
	adopted := prior.Renamed(p, name)
	if !prior.IsFixed(adopted) {
		b.params = append(b.params, adopted)
	}
	return adopted
}

// Parameters returns the ordered combined free-parameter list: scatterer
// parameters, then optics parameters, then alpha.
func (b *Base) Parameters() []prior.Prior { return b.params }

// Theory returns the configured theory selector.
func (b *Base) Theory() string { return b.theory }

// Scatterer returns the parameter binder wrapping the scatterer description.
func (b *Base) Scatterer() *binder.Binder { return b.scatterer }

// GetParameter resolves a parameter by name: from the supplied values (which
// it consumes), then from the model's own slots, then by reassembling a
// registered group or array from its members, then from the schema fallback.
func (b *Base) GetParameter(name string, pars map[string]float64, schema *optics.Schema) (prior.Value, error) {
	if v, ok := pars[name]; ok {
		delete(pars, name)
		return prior.Scalar(v), nil
	}
	if v, ok := b.slots[name]; ok {
		return b.resolveSlot(v, pars), nil
	}
	if keys, ok := b.subNames[name]; ok {
		g := prior.Group{}
		for _, key := range keys {
			v, err := b.GetParameter(name+"_"+key, pars, nil)
			if err != nil {
				return nil, err
			}
			g[key] = v
		}
		return g, nil
	}
	if schema != nil {
		if v, ok := schemaFallback(schema, name); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingParameter, name)
}

func (b *Base) resolveSlot(v prior.Value, pars map[string]float64) prior.Value {
	switch p := v.(type) {
	case *prior.ComplexPrior:
		re := b.resolvePrior(p.Real, pars)
		im := b.resolvePrior(p.Imag, pars)
		return prior.Complex(complex(re, im))
	case prior.Prior:
		return prior.Scalar(b.resolvePrior(p, pars))
	default:
		return v
	}
}

// resolvePrior looks a free prior up in the supplied values by its bound
// name, consuming the entry; absent values fall back to the guess.
func (b *Base) resolvePrior(p prior.Prior, pars map[string]float64) float64 {
	if prior.IsFixed(p) {
		return p.Guess()
	}
	if v, ok := pars[p.Name()]; ok {
		delete(pars, p.Name())
		return v
	}
	return p.Guess()
}

func schemaFallback(schema *optics.Schema, name string) (prior.Value, bool) {
	switch name {
	case "medium_index":
		if schema.MediumIndex != 0 {
			return prior.Scalar(schema.MediumIndex), true
		}
	case "illum_wavelen":
		if schema.IllumWavelen != 0 {
			return prior.Scalar(schema.IllumWavelen), true
		}
	case "illum_polarization":
		if len(schema.IllumPolarization) > 0 {
			values := make([]prior.Value, len(schema.IllumPolarization))
			labels := make([]string, len(schema.IllumPolarization))
			axes := []string{"x", "y", "z"}
			for i, c := range schema.IllumPolarization {
				values[i] = prior.Scalar(c)
				labels[i] = axes[i%len(axes)]
			}
			return prior.Array{Dims: []string{"vector"}, Labels: labels, Values: values}, true
		}
	}
	return nil, false
}

// Guess returns the ordered initial-guess vector over the combined
// free-parameter list.
func (m *Model) Guess() []float64 {
	out := make([]float64, len(m.params))
	for i, p := range m.params {
		out[i] = p.Guess()
	}
	return out
}

// GuessDict returns the name-to-guess mapping over the combined
// free-parameter list.
func (m *Model) GuessDict() map[string]float64 {
	out := make(map[string]float64, len(m.params))
	for _, p := range m.params {
		out[p.Name()] = p.Guess()
	}
	return out
}

// Residual returns the flattened difference between the simulated hologram
// at the proposed parameter values and the observed data. Constraint
// violations and any failure inside the calculation collaborator yield an
// all-+Inf vector of the schema's size instead of an error, so optimizers
// can treat unphysical trial points uniformly. Errors are reserved for
// specification-level problems: unresolvable required parameters or a
// malformed value mapping.
func (m *Model) Residual(pars map[string]float64, frame *optics.Frame) ([]float64, error) {
	if frame == nil || frame.Schema == nil {
		return nil, fmt.Errorf("%w: nil data frame", ErrSpecification)
	}
	work := make(map[string]float64, len(pars))
	for k, v := range pars {
		work[k] = v
	}

	alpha := 1.0
	av, err := m.GetParameter("alpha", work, nil)
	switch {
	case err == nil:
		alpha, err = asFloat(av)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, ErrMissingParameter):
		// Scaling is optional; default to 1.
	default:
		return nil, err
	}

	mediumIndex, err := m.floatParameter("medium_index", work, frame.Schema)
	if err != nil {
		return nil, err
	}
	illumWavelen, err := m.floatParameter("illum_wavelen", work, frame.Schema)
	if err != nil {
		return nil, err
	}
	pv, err := m.GetParameter("illum_polarization", work, frame.Schema)
	if err != nil {
		return nil, err
	}
	polarization, err := asVector(pv)
	if err != nil {
		return nil, err
	}

	s, err := m.scatterer.MakeFrom(work)
	if err != nil {
		return nil, err
	}
	for _, c := range m.constraints {
		if !c.Check(s) {
			return penalty(frame.Schema), nil
		}
	}

	sim, err := m.safeCalc(frame.Schema, s, alpha, mediumIndex, illumWavelen, polarization)
	if err != nil || len(sim) != frame.Schema.Size() {
		return penalty(frame.Schema), nil
	}
	res := make([]float64, len(sim))
	for i := range sim {
		res[i] = sim[i] - frame.Values[i]
	}
	return res, nil
}

// safeCalc shields the optimizer from the physics kernel: both errors and
// panics are converted into a failed calculation.
func (m *Model) safeCalc(schema *optics.Schema, s scatterer.Scatterer, alpha, mediumIndex, illumWavelen float64, polarization []float64) (out []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("calculation panic: %v", r)
		}
	}()
	return m.calc(schema, s, alpha, m.theory, mediumIndex, illumWavelen, polarization)
}

func (m *Model) floatParameter(name string, pars map[string]float64, schema *optics.Schema) (float64, error) {
	v, err := m.GetParameter(name, pars, schema)
	if err != nil {
		return 0, err
	}
	return asFloat(v)
}

func penalty(schema *optics.Schema) []float64 {
	out := make([]float64, schema.Size())
	for i := range out {
		out[i] = math.Inf(1)
	}
	return out
}

func asFloat(v prior.Value) (float64, error) {
	switch p := v.(type) {
	case prior.Scalar:
		return float64(p), nil
	case prior.Complex:
		if imag(p) != 0 {
			return 0, fmt.Errorf("%w: complex value where a real was expected", ErrSpecification)
		}
		return real(p), nil
	case prior.Prior:
		return p.Guess(), nil
	default:
		return 0, fmt.Errorf("%w: value is not scalar", ErrSpecification)
	}
}

func asVector(v prior.Value) ([]float64, error) {
	switch p := v.(type) {
	case prior.Scalar:
		return []float64{float64(p)}, nil
	case prior.Array:
		out := make([]float64, len(p.Values))
		for i := range p.Values {
			c, err := asFloat(p.Values[i])
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case prior.Group:
		keys := sortedKeys(p)
		out := make([]float64, 0, len(keys))
		for _, key := range keys {
			c, err := asFloat(p[key])
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: value is not a vector", ErrSpecification)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
