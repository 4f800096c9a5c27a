package theory

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/integrate/quad"

	"holofit/internal/scatterer"
)

const defaultQuadPoints = 100

// MieLens computes the Mie scattered field of a sphere as imaged through a
// perfect lens of the given acceptance half-angle. The detector must sit at
// a single z distance from the particle.
type MieLens struct {
	LensAngle  float64
	QuadPoints int
}

func NewMieLens(lensAngle float64) *MieLens {
	return &MieLens{LensAngle: lensAngle, QuadPoints: defaultQuadPoints}
}

func (*MieLens) Name() string { return "mielens" }

func (*MieLens) CanHandle(s scatterer.Scatterer) bool {
	_, ok := s.(*scatterer.Sphere)
	return ok
}

func (ml *MieLens) Fields(points [][3]float64, s scatterer.Scatterer, medWavevec, medIndex float64, pol [2]float64) ([][3]complex128, error) {
	sphere, ok := s.(*scatterer.Sphere)
	if !ok {
		return nil, fmt.Errorf("%w: mielens requires a single sphere, got %T", ErrNotCompatible, s)
	}
	if !(ml.LensAngle > 0) || ml.LensAngle > math.Pi/2 {
		return nil, fmt.Errorf("%w: lens angle must be in (0, pi/2], got %g", ErrCalculation, ml.LensAngle)
	}
	indexRatio, sizeParameter, center, err := sphereGeometry(sphere, medWavevec, medIndex)
	if err != nil {
		return nil, err
	}
	a, b, err := mieCoefficients(indexRatio, sizeParameter)
	if err != nil {
		return nil, err
	}

	// Detector geometry relative to the sphere, in wavevector units.
	kz := make([]float64, len(points))
	krho := make([]float64, len(points))
	phi := make([]float64, len(points))
	kzMin, kzMax, kzSum := math.Inf(1), math.Inf(-1), 0.0
	for i, p := range points {
		dx := p[0] - center[0]
		dy := p[1] - center[1]
		dz := p[2] - center[2]
		kz[i] = medWavevec * dz
		krho[i] = medWavevec * math.Hypot(dx, dy)
		phi[i] = math.Atan2(dy, dx)
		kzMin = math.Min(kzMin, kz[i])
		kzMax = math.Max(kzMax, kz[i])
		kzSum += kz[i]
	}
	particleKz := kzSum / float64(len(points))
	if (kzMax-kzMin)/particleKz > 1e-13 {
		return nil, fmt.Errorf("%w: mielens currently assumes the detector is a fixed z from the particle", ErrCalculation)
	}

	quadPts := ml.QuadPoints
	if quadPts <= 0 {
		quadPts = defaultQuadPoints
	}
	theta := make([]float64, quadPts)
	weight := make([]float64, quadPts)
	quad.Legendre{}.FixedLocations(theta, weight, 0, ml.LensAngle)

	// Angular factors and Mie amplitudes are shared across detector points.
	sinTh := make([]float64, quadPts)
	cosTh := make([]float64, quadPts)
	pre := make([]complex128, quadPts)
	parallel := make([]complex128, quadPts)
	perpendicular := make([]complex128, quadPts)
	for j := 0; j < quadPts; j++ {
		sinTh[j] = math.Sin(theta[j])
		cosTh[j] = math.Cos(theta[j])
		s1, s2 := amplitudes(a, b, cosTh[j])
		perpendicular[j] = s1
		parallel[j] = s2 * complex(cosTh[j], 0)
		// Defocus phase of the collected ray relative to the axial ray.
		pre[j] = complex(weight[j]*sinTh[j]*math.Sqrt(cosTh[j]), 0) *
			cmplx.Exp(complex(0, particleKz*(1-cosTh[j])))
	}

	polAngle := math.Atan2(pol[1], pol[0])
	// The lens Gouy-shifts the incident wave by pi/2 and the scattered wave
	// carries the reference phase e^{ikz}.
	lensPhase := complex(0, 1) * cmplx.Exp(complex(0, particleKz))

	out := make([][3]complex128, len(points))
	for i := range points {
		var i0, i2 complex128
		for j := 0; j < quadPts; j++ {
			arg := krho[i] * sinTh[j]
			i0 += pre[j] * complex(math.J0(arg), 0) * (perpendicular[j] + parallel[j])
			i2 += pre[j] * complex(math.Jn(2, arg), 0) * (perpendicular[j] - parallel[j])
		}
		ph := phi[i] - polAngle
		ex := 0.5 * (i0 + i2*complex(math.Cos(2*ph), 0))
		ey := 0.5 * i2 * complex(math.Sin(2*ph), 0)
		out[i] = rotateXY([3]complex128{lensPhase * ex, lensPhase * ey, 0}, polAngle)
	}
	return out, nil
}
