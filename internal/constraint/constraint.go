// Package constraint provides pluggable physical-admissibility predicates
// evaluated against reconstructed scatterers during residual evaluation.
package constraint

import (
	"gonum.org/v1/gonum/floats"

	"holofit/internal/scatterer"
)

// Constraint reports whether a reconstructed scatterer is physically
// admissible. False short-circuits residual evaluation to an infinite
// penalty.
type Constraint interface {
	Check(s scatterer.Scatterer) bool
}

// Overlapper is implemented by composite scatterers that can report pairwise
// overlap between their components.
type Overlapper interface {
	LargestOverlap() (float64, error)
	Radii() ([]float64, error)
}

// LimitOverlaps prohibits component overlaps beyond a tolerance expressed as
// a fraction of the smallest component diameter.
type LimitOverlaps struct {
	Fraction float64
}

// NewLimitOverlaps returns the constraint with the default 10% tolerance.
func NewLimitOverlaps() LimitOverlaps {
	return LimitOverlaps{Fraction: 0.1}
}

// Check admits scatterers without an overlap concept. Clusters that cannot
// report concrete geometry are rejected.
func (l LimitOverlaps) Check(s scatterer.Scatterer) bool {
	o, ok := s.(Overlapper)
	if !ok {
		return true
	}
	overlap, err := o.LargestOverlap()
	if err != nil {
		return false
	}
	radii, err := o.Radii()
	if err != nil || len(radii) == 0 {
		return false
	}
	return overlap <= l.Fraction*2*floats.Min(radii)
}
