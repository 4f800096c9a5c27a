package holofit

import (
	"errors"
	"fmt"

	"holofit/internal/optics"
	"holofit/internal/prior"
	"holofit/internal/scatterer"
)

var ErrRequest = errors.New("invalid request")

// ParamSpec declares one scalar parameter of a fit: either a fixed constant
// or a free prior. It is the JSON-facing form of the prior package.
type ParamSpec struct {
	// Kind is "fixed", "uniform" or "gaussian". An empty kind with a
	// non-zero Value means fixed.
	Kind  string  `json:"kind,omitempty"`
	Value float64 `json:"value,omitempty"`

	Lower float64 `json:"lower,omitempty"`
	Upper float64 `json:"upper,omitempty"`
	// Guess overrides the uniform midpoint start when non-zero.
	Guess float64 `json:"guess,omitempty"`

	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
}

func (p ParamSpec) toPrior() (prior.Prior, error) {
	switch p.Kind {
	case "", "fixed":
		return prior.NewFixed(p.Value), nil
	case "uniform":
		if p.Guess != 0 {
			return prior.NewUniformAt(p.Lower, p.Upper, p.Guess)
		}
		return prior.NewUniform(p.Lower, p.Upper)
	case "gaussian":
		return prior.NewGaussian(p.Mean, p.Std)
	default:
		return nil, fmt.Errorf("%w: unknown parameter kind %q", ErrRequest, p.Kind)
	}
}

func (p ParamSpec) toValue() (prior.Value, error) {
	if p.Kind == "" || p.Kind == "fixed" {
		return prior.Scalar(p.Value), nil
	}
	return p.toPrior()
}

// SphereSpec declares a sphere with per-field parameter specs. IndexImag is
// optional; when present the refractive index becomes a complex pair.
type SphereSpec struct {
	Index     ParamSpec    `json:"index"`
	IndexImag *ParamSpec   `json:"index_imag,omitempty"`
	Radius    ParamSpec    `json:"radius"`
	Center    [3]ParamSpec `json:"center"`
}

func (s SphereSpec) toScatterer() (*scatterer.Sphere, error) {
	var n prior.Value
	if s.IndexImag != nil {
		re, err := s.Index.toPrior()
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		im, err := s.IndexImag.toPrior()
		if err != nil {
			return nil, fmt.Errorf("index_imag: %w", err)
		}
		n, err = prior.NewComplexPrior(re, im)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		n, err = s.Index.toValue()
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
	}
	r, err := s.Radius.toValue()
	if err != nil {
		return nil, fmt.Errorf("radius: %w", err)
	}
	var center [3]prior.Value
	for i, axis := range []string{"x", "y", "z"} {
		c, err := s.Center[i].toValue()
		if err != nil {
			return nil, fmt.Errorf("center.%s: %w", axis, err)
		}
		center[i] = c
	}
	return &scatterer.Sphere{N: n, R: r, Center: center}, nil
}

// ScattererSpec declares the object being fit: exactly one of Sphere or
// Spheres must be set.
type ScattererSpec struct {
	Sphere  *SphereSpec  `json:"sphere,omitempty"`
	Spheres []SphereSpec `json:"spheres,omitempty"`
}

func (s ScattererSpec) toScatterer() (scatterer.Scatterer, error) {
	switch {
	case s.Sphere != nil && len(s.Spheres) > 0:
		return nil, fmt.Errorf("%w: specify either sphere or spheres, not both", ErrRequest)
	case s.Sphere != nil:
		return s.Sphere.toScatterer()
	case len(s.Spheres) > 0:
		cluster := scatterer.NewSpheres()
		for i, spec := range s.Spheres {
			member, err := spec.toScatterer()
			if err != nil {
				return nil, fmt.Errorf("spheres[%d]: %w", i, err)
			}
			cluster.Add(member)
		}
		return cluster, nil
	default:
		return nil, fmt.Errorf("%w: a scatterer is required", ErrRequest)
	}
}

// OpticsSpec declares the detector grid and illumination.
type OpticsSpec struct {
	Nx           int       `json:"nx"`
	Ny           int       `json:"ny"`
	Spacing      float64   `json:"spacing"`
	PlaneZ       float64   `json:"plane_z"`
	MediumIndex  float64   `json:"medium_index"`
	IllumWavelen float64   `json:"illum_wavelen"`
	Polarization []float64 `json:"polarization,omitempty"`
}

func (o OpticsSpec) toSchema() (*optics.Schema, error) {
	schema, err := optics.NewGrid(o.Nx, o.Ny, o.Spacing, o.PlaneZ)
	if err != nil {
		return nil, err
	}
	schema.MediumIndex = o.MediumIndex
	schema.IllumWavelen = o.IllumWavelen
	schema.IllumPolarization = append([]float64(nil), o.Polarization...)
	return schema, nil
}
