// Package prior defines the fit-parameter vocabulary: free priors with a
// guess value, fixed constants, complex pairs, and the composite tree values
// a scatterer exposes through its parameter map.
package prior

import (
	"errors"
	"fmt"
	"math"
)

var ErrSpecification = errors.New("parameter specification error")

// Value is one node in a parameter tree. The set of implementations is
// closed: Scalar, Complex, Group, Array, ComplexPrior and the Prior variants.
type Value interface {
	isValue()
}

// Prior is a fit parameter carrying a scalar guess. Fixed values satisfy
// Prior but never enter the optimization vector.
type Prior interface {
	Value
	Guess() float64
	Name() string
	Bounds() (lo, hi float64)

	setName(string)
	clone() Prior
}

// Scalar is a plain real constant inside a parameter tree.
type Scalar float64

// Complex is a plain complex constant inside a parameter tree.
type Complex complex128

// Group is a keyed sub-object, such as the per-layer values of a coated
// sphere.
type Group map[string]Value

// Array is a labeled one-dimensional sequence of values, such as per-particle
// positions in a cluster. Dims carries the dimension names; anything beyond a
// single dimension is rejected when the tree is traversed.
type Array struct {
	Dims   []string
	Labels []string
	Values []Value
}

func (Scalar) isValue()  {}
func (Complex) isValue() {}
func (Group) isValue()   {}
func (Array) isValue()   {}

// Uniform is a free parameter distributed uniformly between Lower and Upper.
type Uniform struct {
	Lower float64
	Upper float64
	Start float64

	name string
}

// NewUniform returns a uniform prior with its guess at the interval midpoint.
func NewUniform(lower, upper float64) (*Uniform, error) {
	return NewUniformAt(lower, upper, (lower+upper)/2)
}

// NewUniformAt returns a uniform prior with an explicit guess.
func NewUniformAt(lower, upper, guess float64) (*Uniform, error) {
	if !(lower < upper) {
		return nil, fmt.Errorf("%w: uniform bounds must satisfy lower < upper, got [%g, %g]", ErrSpecification, lower, upper)
	}
	if guess < lower || guess > upper {
		return nil, fmt.Errorf("%w: uniform guess %g outside [%g, %g]", ErrSpecification, guess, lower, upper)
	}
	return &Uniform{Lower: lower, Upper: upper, Start: guess}, nil
}

func (u *Uniform) isValue()               {}
func (u *Uniform) Guess() float64         { return u.Start }
func (u *Uniform) Name() string           { return u.name }
func (u *Uniform) Bounds() (lo, hi float64) { return u.Lower, u.Upper }
func (u *Uniform) setName(name string)    { u.name = name }

func (u *Uniform) clone() Prior {
	c := *u
	return &c
}

// Gaussian is a free parameter with a normal distribution; its guess is the
// mean and it is unbounded.
type Gaussian struct {
	Mean float64
	Std  float64

	name string
}

func NewGaussian(mean, std float64) (*Gaussian, error) {
	if std <= 0 {
		return nil, fmt.Errorf("%w: gaussian std must be > 0, got %g", ErrSpecification, std)
	}
	return &Gaussian{Mean: mean, Std: std}, nil
}

func (g *Gaussian) isValue()               {}
func (g *Gaussian) Guess() float64         { return g.Mean }
func (g *Gaussian) Name() string           { return g.name }
func (g *Gaussian) Bounds() (lo, hi float64) { return math.Inf(-1), math.Inf(1) }
func (g *Gaussian) setName(name string)    { g.name = name }

func (g *Gaussian) clone() Prior {
	c := *g
	return &c
}

// Fixed wraps a constant so it can stand wherever a Prior is expected. It is
// discarded during parameter discovery and resolves to its value.
type Fixed struct {
	Val float64

	name string
}

func NewFixed(v float64) *Fixed { return &Fixed{Val: v} }

func (f *Fixed) isValue()               {}
func (f *Fixed) Guess() float64         { return f.Val }
func (f *Fixed) Name() string           { return f.name }
func (f *Fixed) Bounds() (lo, hi float64) { return f.Val, f.Val }
func (f *Fixed) setName(name string)    { f.name = name }

func (f *Fixed) clone() Prior {
	c := *f
	return &c
}

// ComplexPrior pairs two priors into one complex-valued parameter. It never
// enters the optimization vector itself; its real and imaginary children do.
type ComplexPrior struct {
	Real Prior
	Imag Prior
}

// NewComplexPrior builds a complex parameter from its parts. Either part may
// be a free prior or a Fixed constant.
func NewComplexPrior(re, im Prior) (*ComplexPrior, error) {
	if re == nil || im == nil {
		return nil, fmt.Errorf("%w: complex prior requires both real and imaginary parts", ErrSpecification)
	}
	return &ComplexPrior{Real: re, Imag: im}, nil
}

func (c *ComplexPrior) isValue() {}

// Guess combines the guesses of both parts.
func (c *ComplexPrior) Guess() complex128 {
	return complex(c.Real.Guess(), c.Imag.Guess())
}

// IsFixed reports whether p is a Fixed constant.
func IsFixed(p Prior) bool {
	_, ok := p.(*Fixed)
	return ok
}

// Renamed returns a deep copy of p carrying the given name. The original is
// left untouched so object identity, which tie detection depends on, is
// preserved.
func Renamed(p Prior, name string) Prior {
	c := p.clone()
	c.setName(name)
	return c
}
