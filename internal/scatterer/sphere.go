package scatterer

import (
	"fmt"

	"holofit/internal/prior"
)

// Sphere is a homogeneous sphere described by a refractive index, a radius
// and a center position. Any field may hold a free prior instead of a
// concrete value when the sphere is used as a fit specification.
type Sphere struct {
	N      prior.Value
	R      prior.Value
	Center [3]prior.Value
}

// NewSphere returns a fully concrete sphere.
func NewSphere(n complex128, r float64, center [3]float64) *Sphere {
	return &Sphere{
		N: prior.Complex(n),
		R: prior.Scalar(r),
		Center: [3]prior.Value{
			prior.Scalar(center[0]),
			prior.Scalar(center[1]),
			prior.Scalar(center[2]),
		},
	}
}

func (s *Sphere) Parameters() map[string]prior.Value {
	return map[string]prior.Value{
		"n":        s.N,
		"r":        s.R,
		"center.x": s.Center[0],
		"center.y": s.Center[1],
		"center.z": s.Center[2],
	}
}

func (s *Sphere) FromParameters(vals Values) (Scatterer, error) {
	n, err := vals.complexAt("n")
	if err != nil {
		return nil, err
	}
	r, err := vals.real("r")
	if err != nil {
		return nil, err
	}
	var center [3]float64
	for i, axis := range []string{"center.x", "center.y", "center.z"} {
		c, err := vals.real(axis)
		if err != nil {
			return nil, err
		}
		center[i] = c
	}
	return NewSphere(n, r, center), nil
}

// Index returns the concrete refractive index, failing if the sphere still
// holds a free prior.
func (s *Sphere) Index() (complex128, error) {
	if cp, ok := s.N.(*prior.ComplexPrior); ok {
		if prior.IsFixed(cp.Real) && prior.IsFixed(cp.Imag) {
			return cp.Guess(), nil
		}
		return 0, fmt.Errorf("%w: sphere index is not concrete", ErrDefinition)
	}
	return concreteComplex("n", s.N)
}

// Radius returns the concrete radius.
func (s *Sphere) Radius() (float64, error) {
	return concreteReal("r", s.R)
}

// Position returns the concrete center.
func (s *Sphere) Position() ([3]float64, error) {
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
