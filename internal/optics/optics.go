// Package optics carries detector geometry and illumination metadata. A
// Schema doubles as the fallback source for optics parameters a model does
// not fix explicitly.
package optics

import (
	"errors"
	"fmt"
)

var ErrSchema = errors.New("schema error")

// Schema describes the detector: the positions its pixels sample, plus
// optional illumination metadata. Zero values mean "not recorded".
type Schema struct {
	Points            [][3]float64
	MediumIndex       float64
	IllumWavelen      float64
	IllumPolarization []float64
}

// NewGrid builds a square detector grid of nx by ny pixels with the given
// spacing, centered on the origin of the plane z = planeZ.
func NewGrid(nx, ny int, spacing, planeZ float64) (*Schema, error) {
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrSchema, nx, ny)
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("%w: spacing must be > 0, got %g", ErrSchema, spacing)
	}
	points := make([][3]float64, 0, nx*ny)
	x0 := -spacing * float64(nx-1) / 2
	y0 := -spacing * float64(ny-1) / 2
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			points = append(points, [3]float64{
				x0 + spacing*float64(i),
				y0 + spacing*float64(j),
				planeZ,
			})
		}
	}
	return &Schema{Points: points}, nil
}

// Size returns the number of detector samples.
func (s *Schema) Size() int { return len(s.Points) }

// Frame is observed data on a detector schema.
type Frame struct {
	Schema *Schema
	Values []float64
}

func NewFrame(schema *Schema, values []float64) (*Frame, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrSchema)
	}
	if len(values) != schema.Size() {
		return nil, fmt.Errorf("%w: %d values for %d detector points", ErrSchema, len(values), schema.Size())
	}
	return &Frame{Schema: schema, Values: values}, nil
}
