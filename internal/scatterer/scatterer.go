// Package scatterer defines scatterer descriptions for holographic
// microscopy fits. A description exposes its parameter tree through
// Parameters and can rebuild itself from concrete values through
// FromParameters; the two are inverses for fully concrete descriptions.
package scatterer

import (
	"errors"
	"fmt"

	"holofit/internal/prior"
)

var ErrDefinition = errors.New("scatterer definition error")

// Values maps flattened dotted parameter names to concrete values. Real
// quantities are carried in the real part.
type Values map[string]complex128

type Scatterer interface {
	// Parameters returns the parameter tree keyed by dotted names. Leaves
	// may be plain constants, free priors, complex pairs, keyed groups or
	// labeled one-dimensional arrays.
	Parameters() map[string]prior.Value

	// FromParameters builds a concrete scatterer of the same kind from
	// resolved values. Group and array members arrive flattened under
	// their member names (n_0, center.x, ...).
	FromParameters(vals Values) (Scatterer, error)
}

func (v Values) real(name string) (float64, error) {
	c, ok := v[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing value for %q", ErrDefinition, name)
	}
	return real(c), nil
}

func (v Values) complexAt(name string) (complex128, error) {
	c, ok := v[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing value for %q", ErrDefinition, name)
	}
	return c, nil
}

// concreteReal extracts a plain real number from a parameter-tree leaf.
func concreteReal(name string, v prior.Value) (float64, error) {
	switch p := v.(type) {
	case prior.Scalar:
		return float64(p), nil
	case prior.Complex:
		if imag(p) != 0 {
			return 0, fmt.Errorf("%w: %s is complex, expected real", ErrDefinition, name)
		}
		return real(p), nil
	case *prior.Fixed:
		return p.Val, nil
	default:
		return 0, fmt.Errorf("%w: %s is not concrete", ErrDefinition, name)
	}
}

// concreteComplex extracts a complex number from a parameter-tree leaf.
func concreteComplex(name string, v prior.Value) (complex128, error) {
	switch p := v.(type) {
	case prior.Scalar:
		return complex(float64(p), 0), nil
	case prior.Complex:
		return complex128(p), nil
	case *prior.Fixed:
		return complex(p.Val, 0), nil
	default:
		return 0, fmt.Errorf("%w: %s is not concrete", ErrDefinition, name)
	}
}
