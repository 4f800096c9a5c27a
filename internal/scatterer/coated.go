package scatterer

import (
	"fmt"
	"strconv"

	"holofit/internal/prior"
)

// CoatedSphere is a layered sphere. N and R are keyed groups with one entry
// per layer, ordered inner to outer; R holds each layer's outer radius.
type CoatedSphere struct {
	N      prior.Value
	R      prior.Value
	Center [3]prior.Value
}

// NewCoatedSphere returns a concrete layered sphere. n and r must have the
// same length and r must be strictly increasing.
func NewCoatedSphere(n []complex128, r []float64, center [3]float64) (*CoatedSphere, error) {
	if len(n) == 0 || len(n) != len(r) {
		return nil, fmt.Errorf("%w: coated sphere needs matching n and r layers, got %d and %d", ErrDefinition, len(n), len(r))
	}
	for i := 1; i < len(r); i++ {
		if r[i] <= r[i-1] {
			return nil, fmt.Errorf("%w: layer radii must increase outward", ErrDefinition)
		}
	}
	ng := prior.Group{}
	rg := prior.Group{}
	for i := range n {
		key := strconv.Itoa(i)
		ng[key] = prior.Complex(n[i])
		rg[key] = prior.Scalar(r[i])
	}
	return &CoatedSphere{
		N: ng,
		R: rg,
		Center: [3]prior.Value{
			prior.Scalar(center[0]),
			prior.Scalar(center[1]),
			prior.Scalar(center[2]),
		},
	}, nil
}

func (s *CoatedSphere) Parameters() map[string]prior.Value {
	return map[string]prior.Value{
		"n":        s.N,
		"r":        s.R,
		"center.x": s.Center[0],
		"center.y": s.Center[1],
		"center.z": s.Center[2],
	}
}

// Layers returns the number of layers declared by the radius group.
func (s *CoatedSphere) Layers() int {
	if g, ok := s.R.(prior.Group); ok {
		return len(g)
	}
	return 0
}

func (s *CoatedSphere) FromParameters(vals Values) (Scatterer, error) {
	layers := s.Layers()
	if layers == 0 {
		return nil, fmt.Errorf("%w: coated sphere has no layers", ErrDefinition)
	}
	n := make([]complex128, layers)
	r := make([]float64, layers)
	for i := 0; i < layers; i++ {
		key := strconv.Itoa(i)
		nv, err := vals.complexAt("n_" + key)
		if err != nil {
			return nil, err
		}
		rv, err := vals.real("r_" + key)
		if err != nil {
			return nil, err
		}
		n[i] = nv
		r[i] = rv
	}
	var center [3]float64
	for i, axis := range []string{"center.x", "center.y", "center.z"} {
		c, err := vals.real(axis)
		if err != nil {
			return nil, err
		}
		center[i] = c
	}
	return NewCoatedSphere(n, r, center)
}

// Indices returns the concrete per-layer refractive indices, inner first.
func (s *CoatedSphere) Indices() ([]complex128, error) {
	g, ok := s.N.(prior.Group)
	if !ok {
		return nil, fmt.Errorf("%w: coated sphere index is not a layer group", ErrDefinition)
	}
	out := make([]complex128, len(g))
	for i := range out {
		key := strconv.Itoa(i)
		v, ok := g[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing index layer %s", ErrDefinition, key)
		}
		c, err := concreteComplex("n_"+key, v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// OuterRadii returns the concrete per-layer outer radii, inner first.
func (s *CoatedSphere) OuterRadii() ([]float64, error) {
	g, ok := s.R.(prior.Group)
	if !ok {
		return nil, fmt.Errorf("%w: coated sphere radius is not a layer group", ErrDefinition)
	}
	out := make([]float64, len(g))
	for i := range out {
		key := strconv.Itoa(i)
		v, ok := g[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing radius layer %s", ErrDefinition, key)
		}
		r, err := concreteReal("r_"+key, v)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Position returns the concrete center.
func (s *CoatedSphere) Position() ([3]float64, error) {
	var p [3]float64
	for i, axis := range []string{"center.x", "center.y", "center.z"} {
		v, err := concreteReal(axis, s.Center[i])
		if err != nil {
			return p, err
		}
		p[i] = v
	}
	return p, nil
}
