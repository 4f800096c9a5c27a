// Package theory computes scattered electromagnetic fields and holograms for
// the scatterer descriptions in this module. It provides the calculation
// collaborator consumed by the fitting model: single-sphere Lorenz-Mie
// scattering, Mie fields imaged through a perfect lens, and superposition
// over sphere clusters.
package theory

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"holofit/internal/optics"
	"holofit/internal/scatterer"
)

var (
	ErrNotCompatible = errors.New("theory cannot handle scatterer")
	ErrCalculation   = errors.New("field calculation error")
)

// Theory computes scattered fields at detector points. medWavevec is the
// wavevector magnitude in the medium, 2*pi*n_med/lambda_vac.
type Theory interface {
	Name() string
	CanHandle(s scatterer.Scatterer) bool
	Fields(points [][3]float64, s scatterer.Scatterer, medWavevec, medIndex float64, pol [2]float64) ([][3]complex128, error)
}

// Resolve maps a theory selector to a concrete theory for the given
// scatterer. "auto" picks Mie for single spheres and superposition for
// clusters.
func Resolve(name string, s scatterer.Scatterer) (Theory, error) {
	var th Theory
	switch name {
	case "", "auto":
		switch s.(type) {
		case *scatterer.Sphere:
			th = NewMie()
		case *scatterer.Spheres:
			th = NewSuperposition(NewMie())
		default:
			return nil, fmt.Errorf("%w: no automatic theory for %T", ErrNotCompatible, s)
		}
	case "mie":
		th = NewMie()
	case "mielens":
		th = NewMieLens(1.0)
	case "superposition", "multisphere":
		th = NewSuperposition(NewMie())
	default:
		return nil, fmt.Errorf("%w: unknown theory %q", ErrCalculation, name)
	}
	if !th.CanHandle(s) {
		return nil, fmt.Errorf("%w: %s cannot handle %T", ErrNotCompatible, th.Name(), s)
	}
	return th, nil
}

// CalcHologram simulates an in-line hologram on the detector schema: the
// interference of the unit-amplitude reference wave with the scattered field
// scaled by alpha. It satisfies the model's CalcFunc contract.
func CalcHologram(schema *optics.Schema, s scatterer.Scatterer, scaling float64, theory string, mediumIndex, illumWavelen float64, illumPolarization []float64) ([]float64, error) {
	if schema == nil || schema.Size() == 0 {
		return nil, fmt.Errorf("%w: empty detector schema", ErrCalculation)
	}
	if mediumIndex <= 0 {
		return nil, fmt.Errorf("%w: medium index must be > 0, got %g", ErrCalculation, mediumIndex)
	}
	if illumWavelen <= 0 {
		return nil, fmt.Errorf("%w: wavelength must be > 0, got %g", ErrCalculation, illumWavelen)
	}
	pol, err := unitPolarization(illumPolarization)
	if err != nil {
		return nil, err
	}
	th, err := Resolve(theory, s)
	if err != nil {
		return nil, err
	}

	k := 2 * math.Pi * mediumIndex / illumWavelen
	fields, err := th.Fields(schema.Points, s, k, mediumIndex, pol)
	if err != nil {
		return nil, err
	}

	holo := make([]float64, len(fields))
	ref := [3]complex128{complex(pol[0], 0), complex(pol[1], 0), 0}
	for i, f := range fields {
		total := 0.0
		for c := 0; c < 3; c++ {
			e := ref[c] + complex(scaling, 0)*f[c]
			total += real(e)*real(e) + imag(e)*imag(e)
		}
		if math.IsNaN(total) {
			return nil, fmt.Errorf("%w: non-finite intensity at point %d", ErrCalculation, i)
		}
		holo[i] = total
	}
	return holo, nil
}

func unitPolarization(pol []float64) ([2]float64, error) {
	if len(pol) < 2 {
		return [2]float64{}, fmt.Errorf("%w: polarization needs two components, got %d", ErrCalculation, len(pol))
	}
	norm := math.Hypot(pol[0], pol[1])
	if norm == 0 {
		return [2]float64{}, fmt.Errorf("%w: zero polarization vector", ErrCalculation)
	}
	return [2]float64{pol[0] / norm, pol[1] / norm}, nil
}

// relative converts a detector point to spherical coordinates about the
// sphere center, with the radial coordinate scaled by the wavevector.
func relative(point, center [3]float64, k float64) (kr, cosTheta, phi float64, err error) {
	dx := point[0] - center[0]
	dy := point[1] - center[1]
	dz := point[2] - center[2]
	r := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if r == 0 {
		return 0, 0, 0, fmt.Errorf("%w: detector point coincides with sphere center", ErrCalculation)
	}
	return k * r, dz / r, math.Atan2(dy, dx), nil
}

// rotateXY rotates a field's transverse components by the polarization angle.
func rotateXY(f [3]complex128, alpha float64) [3]complex128 {
	c := complex(math.Cos(alpha), 0)
	s := complex(math.Sin(alpha), 0)
	return [3]complex128{
		f[0]*c - f[1]*s,
		f[0]*s + f[1]*c,
		f[2],
	}
}

// sphereGeometry extracts the concrete index ratio, size parameter and
// center a theory needs from a sphere.
func sphereGeometry(s *scatterer.Sphere, medWavevec, medIndex float64) (indexRatio complex128, sizeParameter float64, center [3]float64, err error) {
	n, err := s.Index()
	if err != nil {
		return 0, 0, center, err
	}
	r, err := s.Radius()
	if err != nil {
		return 0, 0, center, err
	}
	center, err = s.Position()
	if err != nil {
		return 0, 0, center, err
	}
	if r <= 0 {
		return 0, 0, center, fmt.Errorf("%w: sphere radius must be > 0, got %g", ErrCalculation, r)
	}
	return n / complex(medIndex, 0), medWavevec * r, center, nil
}

// propagator is the outgoing spherical-wave factor relative to the incident
// plane wave at the detector point: exp(ik(r - z)) / (-ikr).
func propagator(kr, kdz float64) complex128 {
	return cmplx.Exp(complex(0, kr-kdz)) / complex(0, -kr)
}
