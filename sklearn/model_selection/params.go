package model_selection

import (
	"math/rand/v2"
	"sort"
)

// ParamGrid maps parameter names to the values to try.
type ParamGrid map[string][]interface{}

// Size returns the number of combinations.
func (g ParamGrid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, v := range g {
		n *= len(v)
	}
	return n
}

// Combinations enumerates the grid. Keys are taken in sorted order and the
// last key varies fastest, which is scikit-learn's ParameterGrid order.
func (g ParamGrid) Combinations() []map[string]interface{} {
	size := g.Size()
	if size == 0 {
		return nil
	}
	keys := sortedKeys(g)
	out := make([]map[string]interface{}, size)
	for i := range out {
		p := make(map[string]interface{}, len(keys))
		rest := i
		for k := len(keys) - 1; k >= 0; k-- {
			vals := g[keys[k]]
			p[keys[k]] = vals[rest%len(vals)]
			rest /= len(vals)
		}
		out[i] = p
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Distribution draws values of one parameter.
type Distribution interface {
	Sample(r *rand.Rand) interface{}
}

// Uniform is the continuous uniform distribution on [Loc, Loc+Scale],
// parameterized like scipy.stats.uniform.
type Uniform struct {
	Loc   float64
	Scale float64
}

// Sample draws one value.
func (u Uniform) Sample(r *rand.Rand) interface{} {
	return u.Loc + u.Scale*r.Float64()
}

// RandInt is the discrete uniform distribution on [Low, High).
type RandInt struct {
	Low  int
	High int
}

// Sample draws one value.
func (d RandInt) Sample(r *rand.Rand) interface{} {
	if d.High <= d.Low {
		return d.Low
	}
	return d.Low + r.IntN(d.High-d.Low)
}

// Choice draws uniformly from a list.
type Choice []interface{}

// Sample draws one value.
func (c Choice) Sample(r *rand.Rand) interface{} {
	return c[r.IntN(len(c))]
}

// Values wraps values into a Choice.
func Values(values ...interface{}) Choice {
	return Choice(values)
}

// ParamDistributions maps parameter names to distributions.
type ParamDistributions map[string]Distribution

// Sample draws nIter parameter settings. When every distribution is a
// Choice the settings are drawn without replacement from the grid, so at
// most Grid().Size() settings are returned.
func (d ParamDistributions) Sample(nIter int, seed uint64) []map[string]interface{} {
	r := rand.New(rand.NewPCG(seed, seed))

	if grid, ok := d.grid(); ok {
		all := grid.Combinations()
		if nIter > len(all) {
			nIter = len(all)
		}
		out := make([]map[string]interface{}, nIter)
		for i, j := range r.Perm(len(all))[:nIter] {
			out[i] = all[j]
		}
		return out
	}

	keys := sortedKeys(d)
	out := make([]map[string]interface{}, nIter)
	for i := range out {
		p := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			p[k] = d[k].Sample(r)
		}
		out[i] = p
	}
	return out
}

// grid returns the equivalent ParamGrid when every entry is a Choice.
func (d ParamDistributions) grid() (ParamGrid, bool) {
	g := make(ParamGrid, len(d))
	for k, dist := range d {
		c, ok := dist.(Choice)
		if !ok {
			return nil, false
		}
		g[k] = c
	}
	return g, true
}
