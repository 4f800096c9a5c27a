package scatterer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"holofit/internal/prior"
)

// Spheres is a cluster of spheres. Member parameters are exposed with an
// "i:" prefix, so the first sphere's radius is named "0:r".
type Spheres struct {
	Scatterers []*Sphere
}

func NewSpheres(members ...*Sphere) *Spheres {
	return &Spheres{Scatterers: members}
}

func (c *Spheres) Add(s *Sphere) {
	c.Scatterers = append(c.Scatterers, s)
}

func (c *Spheres) Parameters() map[string]prior.Value {
	out := map[string]prior.Value{}
	for i, s := range c.Scatterers {
		prefix := strconv.Itoa(i) + ":"
		for name, v := range s.Parameters() {
			out[prefix+name] = v
		}
	}
	return out
}

func (c *Spheres) FromParameters(vals Values) (Scatterer, error) {
	members := make([]*Sphere, len(c.Scatterers))
	for i := range c.Scatterers {
		prefix := strconv.Itoa(i) + ":"
		sub := Values{}
		for name, v := range vals {
			if strings.HasPrefix(name, prefix) {
				sub[strings.TrimPrefix(name, prefix)] = v
			}
		}
		s, err := c.Scatterers[i].FromParameters(sub)
		if err != nil {
			return nil, fmt.Errorf("cluster member %d: %w", i, err)
		}
		members[i] = s.(*Sphere)
	}
	return NewSpheres(members...), nil
}

// Radii returns the concrete radii of all members.
func (c *Spheres) Radii() ([]float64, error) {
	out := make([]float64, len(c.Scatterers))
	for i, s := range c.Scatterers {
		r, err := s.Radius()
		if err != nil {
			return nil, fmt.Errorf("cluster member %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// LargestOverlap returns the largest pairwise overlap depth between members,
// zero when no pair intersects.
func (c *Spheres) LargestOverlap() (float64, error) {
	largest := 0.0
	for i := 0; i < len(c.Scatterers); i++ {
		pi, err := c.Scatterers[i].Position()
		if err != nil {
			return 0, err
		}
		ri, err := c.Scatterers[i].Radius()
		if err != nil {
			return 0, err
		}
		for j := i + 1; j < len(c.Scatterers); j++ {
			pj, err := c.Scatterers[j].Position()
			if err != nil {
				return 0, err
			}
			rj, err := c.Scatterers[j].Radius()
			if err != nil {
				return 0, err
			}
			d := math.Sqrt(sq(pi[0]-pj[0]) + sq(pi[1]-pj[1]) + sq(pi[2]-pj[2]))
			if overlap := ri + rj - d; overlap > largest {
				largest = overlap
			}
		}
	}
	return largest, nil
}

func sq(x float64) float64 { return x * x }
