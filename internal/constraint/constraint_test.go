package constraint

import (
	"testing"

	"holofit/internal/scatterer"
)

func cluster(separation float64) *scatterer.Spheres {
	return scatterer.NewSpheres(
		scatterer.NewSphere(1.59, 5e-7, [3]float64{0, 0, 0}),
		scatterer.NewSphere(1.59, 5e-7, [3]float64{separation, 0, 0}),
	)
}

func TestLimitOverlapsDefaultFraction(t *testing.T) {
	l := NewLimitOverlaps()
	if l.Fraction != 0.1 {
		t.Fatalf("fraction = %g, want 0.1", l.Fraction)
	}
	// Overlap of 2e-8 is well inside 10% of the 1e-6 diameter.
	if !l.Check(cluster(9.8e-7)) {
		t.Fatal("small overlap rejected")
	}
	// Overlap of 4e-7 is far beyond the tolerance.
	if l.Check(cluster(6e-7)) {
		t.Fatal("large overlap admitted")
	}
}

func TestLimitOverlapsZeroFractionRejectsAnyOverlap(t *testing.T) {
	l := LimitOverlaps{Fraction: 0}
	if l.Check(cluster(9.999e-7)) {
		t.Fatal("nonzero overlap admitted at fraction 0")
	}
	if !l.Check(cluster(1.1e-6)) {
		t.Fatal("separated cluster rejected at fraction 0")
	}
}

func TestLimitOverlapsAdmitsNonComposite(t *testing.T) {
	l := NewLimitOverlaps()
	if !l.Check(scatterer.NewSphere(1.59, 5e-7, [3]float64{0, 0, 0})) {
		t.Fatal("single sphere rejected")
	}
}
