// Package binder maps a free-form scatterer description onto a flat
// optimization-vector representation. It discovers every free prior inside
// the description, assigns each a dotted name, merges parameters that share
// one underlying prior instance, and reconstructs concrete scatterers from
// flat name-to-value mappings.
package binder

import (
	"fmt"
	"sort"
	"strings"

	"holofit/internal/prior"
	"holofit/internal/scatterer"
)

// ErrSpecification is returned for malformed parameter trees, such as
// multi-dimensional array parameters.
var ErrSpecification = prior.ErrSpecification

// Binder owns the discovered free parameters of one scatterer description.
type Binder struct {
	obj    scatterer.Scatterer
	params []prior.Prior
	ties   map[string][]string
}

// New traverses obj's parameter tree in sorted-name order and registers every
// free prior exactly once. Two distinct dotted names referring to the same
// prior instance are merged into a tie group; the group name is the longest
// common trailing substring of the member names, trimmed of separators.
func New(obj scatterer.Scatterer) (*Binder, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil scatterer", ErrSpecification)
	}

	var registered []prior.Prior
	var names []string
	ties := map[string][]string{}

	add := func(p prior.Prior, name string) {
		for i, seen := range registered {
			if seen != p {
				continue
			}
			// Same prior instance under a second name: tie them.
			groupName := tiedName(names[i], name)
			group, ok := ties[groupName]
			if !ok {
				group = []string{names[i]}
			}
			names[i] = groupName
			group = append(group, name)
			ties[groupName] = group
			return
		}
		if !prior.IsFixed(p) {
			registered = append(registered, p)
			names = append(names, name)
		}
	}

	tree := obj.Parameters()
	for _, name := range sortedKeys(tree) {
		err := Walk(name, tree[name], func(leafName string, leaf prior.Prior) error {
			add(leaf, leafName)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	params := make([]prior.Prior, len(registered))
	for i := range registered {
		params[i] = prior.Renamed(registered[i], names[i])
	}
	return &Binder{obj: obj, params: params, ties: ties}, nil
}

// Parameters returns the free parameters in registration order, as deep
// copies carrying their tie-resolved names.
func (b *Binder) Parameters() []prior.Prior { return b.params }

// Ties maps each tie-group name to the original dotted names it covers.
func (b *Binder) Ties() map[string][]string { return b.ties }

// Object returns the wrapped scatterer description.
func (b *Binder) Object() scatterer.Scatterer { return b.obj }

// Guess builds the fully concrete scatterer obtained by substituting every
// prior's guess value.
func (b *Binder) Guess() (scatterer.Scatterer, error) {
	return b.build(func(_ string, p prior.Prior) (float64, error) {
		return p.Guess(), nil
	})
}

// MakeFrom reconstructs a concrete scatterer from flat parameter values keyed
// by tie-resolved names. One supplied value populates every member of its tie
// group; fixed leaves resolve to their constants.
func (b *Binder) MakeFrom(pars map[string]float64) (scatterer.Scatterer, error) {
	return b.build(func(name string, p prior.Prior) (float64, error) {
		if prior.IsFixed(p) {
			return p.Guess(), nil
		}
		key := b.tieGroupFor(name)
		v, ok := pars[key]
		if !ok {
			return 0, fmt.Errorf("%w: no value supplied for parameter %q", ErrSpecification, key)
		}
		return v, nil
	})
}

func (b *Binder) tieGroupFor(name string) string {
	for group, members := range b.ties {
		for _, member := range members {
			if member == name {
				return group
			}
		}
	}
	return name
}

func (b *Binder) build(resolve func(name string, p prior.Prior) (float64, error)) (scatterer.Scatterer, error) {
	vals := scatterer.Values{}
	tree := b.obj.Parameters()
	for _, name := range sortedKeys(tree) {
		if err := resolveValue(vals, name, tree[name], resolve); err != nil {
			return nil, err
		}
	}
	return b.obj.FromParameters(vals)
}

// resolveValue writes the concrete value of one tree node into out, expanding
// groups and arrays to their flattened member names.
func resolveValue(out scatterer.Values, name string, v prior.Value, resolve func(string, prior.Prior) (float64, error)) error {
	switch p := v.(type) {
	case *prior.ComplexPrior:
		re, err := resolve(name+".real", p.Real)
		if err != nil {
			return err
		}
		im, err := resolve(name+".imag", p.Imag)
		if err != nil {
			return err
		}
		out[name] = complex(re, im)
	case prior.Group:
		for _, key := range sortedKeys(p) {
			if err := resolveValue(out, name+"_"+key, p[key], resolve); err != nil {
				return err
			}
		}
	case prior.Array:
		if err := checkArray(p); err != nil {
			return err
		}
		for i, label := range p.Labels {
			if err := resolveValue(out, name+"_"+label, p.Values[i], resolve); err != nil {
				return err
			}
		}
	case prior.Scalar:
		out[name] = complex(float64(p), 0)
	case prior.Complex:
		out[name] = complex128(p)
	case prior.Prior:
		x, err := resolve(name, p)
		if err != nil {
			return err
		}
		out[name] = complex(x, 0)
	default:
		return fmt.Errorf("%w: unsupported parameter value for %q", ErrSpecification, name)
	}
	return nil
}

// Walk visits every prior leaf of a parameter-tree node under the binder's
// naming convention: complex pairs get .real/.imag, group members get _key,
// array members get _label. Raw scalars are wrapped as Fixed so they are
// treated as constants.
func Walk(name string, v prior.Value, visit func(name string, leaf prior.Prior) error) error {
	switch p := v.(type) {
	case *prior.ComplexPrior:
		if err := visit(name+".real", p.Real); err != nil {
			return err
		}
		return visit(name+".imag", p.Imag)
	case prior.Group:
		for _, key := range sortedKeys(p) {
			if err := Walk(name+"_"+key, p[key], visit); err != nil {
				return err
			}
		}
		return nil
	case prior.Array:
		if err := checkArray(p); err != nil {
			return err
		}
		for i, label := range p.Labels {
			if err := Walk(name+"_"+label, p.Values[i], visit); err != nil {
				return err
			}
		}
		return nil
	case prior.Scalar:
		return visit(name, prior.NewFixed(float64(p)))
	case prior.Complex:
		if err := visit(name+".real", prior.NewFixed(real(p))); err != nil {
			return err
		}
		return visit(name+".imag", prior.NewFixed(imag(p)))
	case prior.Prior:
		return visit(name, p)
	default:
		return fmt.Errorf("%w: unsupported parameter value for %q", ErrSpecification, name)
	}
}

func checkArray(a prior.Array) error {
	if len(a.Dims) > 1 {
		return fmt.Errorf("%w: multi-dimensional parameters are not supported", ErrSpecification)
	}
	if len(a.Labels) != len(a.Values) {
		return fmt.Errorf("%w: array has %d labels for %d values", ErrSpecification, len(a.Labels), len(a.Values))
	}
	return nil
}

// tiedName synthesizes a tie-group name from two dotted names that share a
// prior: the longest common trailing substring, trimmed of separators.
func tiedName(a, b string) string {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return strings.Trim(a[len(a)-n:], ":_.")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
