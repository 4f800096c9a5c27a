package theory

import (
	"fmt"

	"holofit/internal/scatterer"
)

// Superposition scatters from a sphere cluster by summing the fields each
// member produces under the inner single-sphere theory. It neglects
// multiple scattering between spheres.
type Superposition struct {
	inner Theory
}

func NewSuperposition(inner Theory) *Superposition {
	return &Superposition{inner: inner}
}

func (sp *Superposition) Name() string {
	return "superposition(" + sp.inner.Name() + ")"
}

func (sp *Superposition) CanHandle(s scatterer.Scatterer) bool {
	cluster, ok := s.(*scatterer.Spheres)
	if !ok {
		return false
	}
	for _, member := range cluster.Scatterers {
		if !sp.inner.CanHandle(member) {
			return false
		}
	}
	return true
}

func (sp *Superposition) Fields(points [][3]float64, s scatterer.Scatterer, medWavevec, medIndex float64, pol [2]float64) ([][3]complex128, error) {
	cluster, ok := s.(*scatterer.Spheres)
	if !ok {
		return nil, fmt.Errorf("%w: superposition requires a sphere cluster, got %T", ErrNotCompatible, s)
	}
	if len(cluster.Scatterers) == 0 {
		return nil, fmt.Errorf("%w: empty cluster", ErrCalculation)
	}
	total := make([][3]complex128, len(points))
	for i, member := range cluster.Scatterers {
		f, err := sp.inner.Fields(points, member, medWavevec, medIndex, pol)
		if err != nil {
			return nil, fmt.Errorf("cluster member %d: %w", i, err)
		}
		for j := range total {
			total[j][0] += f[j][0]
			total[j][1] += f[j][1]
			total[j][2] += f[j][2]
		}
	}
	return total, nil
}
