package theory

import (
	"fmt"
	"math"
	"math/cmplx"

	"holofit/internal/scatterer"
)

// Mie computes exact Lorenz-Mie far-field scattering from a single
// homogeneous sphere.
type Mie struct{}

func NewMie() *Mie { return &Mie{} }

func (*Mie) Name() string { return "mie" }

func (*Mie) CanHandle(s scatterer.Scatterer) bool {
	_, ok := s.(*scatterer.Sphere)
	return ok
}

func (m *Mie) Fields(points [][3]float64, s scatterer.Scatterer, medWavevec, medIndex float64, pol [2]float64) ([][3]complex128, error) {
	sphere, ok := s.(*scatterer.Sphere)
	if !ok {
		return nil, fmt.Errorf("%w: mie requires a single sphere, got %T", ErrNotCompatible, s)
	}
	indexRatio, sizeParameter, center, err := sphereGeometry(sphere, medWavevec, medIndex)
	if err != nil {
		return nil, err
	}
	a, b, err := mieCoefficients(indexRatio, sizeParameter)
	if err != nil {
		return nil, err
	}

	polAngle := math.Atan2(pol[1], pol[0])
	out := make([][3]complex128, len(points))
	for i, p := range points {
		kr, cosTheta, phi, err := relative(p, center, medWavevec)
		if err != nil {
			return nil, err
		}
		// Work in the frame where the polarization lies along x.
		phi -= polAngle
		s1, s2 := amplitudes(a, b, cosTheta)

		sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
		cosPhi := math.Cos(phi)
		sinPhi := math.Sin(phi)

		pre := propagator(kr, kr*cosTheta)
		eTheta := pre * s2 * complex(cosPhi, 0)
		ePhi := -pre * s1 * complex(sinPhi, 0)

		f := [3]complex128{
			eTheta*complex(cosTheta*cosPhi, 0) - ePhi*complex(sinPhi, 0),
			eTheta*complex(cosTheta*sinPhi, 0) + ePhi*complex(cosPhi, 0),
			-eTheta * complex(sinTheta, 0),
		}
		out[i] = rotateXY(f, polAngle)
	}
	return out, nil
}

// mieCoefficients returns the scattering coefficients a_n, b_n for relative
// index m and size parameter x, using downward recurrence for the
// logarithmic derivative and upward recurrence for the Riccati-Bessel
// functions.
func mieCoefficients(m complex128, x float64) (a, b []complex128, err error) {
	if !(x > 0) || math.IsInf(x, 1) {
		return nil, nil, fmt.Errorf("%w: size parameter must be positive and finite, got %g", ErrCalculation, x)
	}
	if m == 0 {
		return nil, nil, fmt.Errorf("%w: zero relative index", ErrCalculation)
	}
	nmax := int(math.Ceil(x + 4*math.Cbrt(x) + 2))
	mx := m * complex(x, 0)

	// Logarithmic derivative D_n(mx) by downward recurrence, started well
	// above nmax.
	nstart := nmax + 16
	if extra := int(cmplx.Abs(mx)); extra > nmax {
		nstart = extra + 16
	}
	d := make([]complex128, nstart+1)
	for n := nstart; n > 0; n-- {
		cn := complex(float64(n), 0)
		d[n-1] = cn/mx - 1/(d[n]+cn/mx)
	}

	a = make([]complex128, nmax)
	b = make([]complex128, nmax)

	psi0 := math.Cos(x) // psi_{-1}
	psi1 := math.Sin(x) // psi_0
	chi0 := -math.Sin(x)
	chi1 := math.Cos(x)
	xi1 := complex(psi1, -chi1)
	for n := 1; n <= nmax; n++ {
		fn := float64(n)
		psi := (2*fn-1)/x*psi1 - psi0
		chi := (2*fn-1)/x*chi1 - chi0
		xi := complex(psi, -chi)

		ta := d[n]/m + complex(fn/x, 0)
		tb := d[n]*m + complex(fn/x, 0)
		a[n-1] = (ta*complex(psi, 0) - complex(psi1, 0)) / (ta*xi - xi1)
		b[n-1] = (tb*complex(psi, 0) - complex(psi1, 0)) / (tb*xi - xi1)

		psi0, psi1 = psi1, psi
		chi0, chi1 = chi1, chi
		xi1 = xi
	}
	return a, b, nil
}

// amplitudes evaluates the scattering amplitudes S1 and S2 at the given
// scattering angle using the pi/tau angular function recurrences.
func amplitudes(a, b []complex128, cosTheta float64) (s1, s2 complex128) {
	piPrev := 0.0 // pi_0
	piCur := 1.0  // pi_1
	for n := 1; n <= len(a); n++ {
		fn := float64(n)
		tau := fn*cosTheta*piCur - (fn+1)*piPrev
		f := complex((2*fn+1)/(fn*(fn+1)), 0)
		s1 += f * (a[n-1]*complex(piCur, 0) + b[n-1]*complex(tau, 0))
		s2 += f * (a[n-1]*complex(tau, 0) + b[n-1]*complex(piCur, 0))

		piNext := ((2*fn+1)*cosTheta*piCur - (fn+1)*piPrev) / fn
		piPrev, piCur = piCur, piNext
	}
	return s1, s2
}
