package stats

import (
	"fmt"
	"math/rand"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/model"
)

// ComputeZHat returns the unbiased per-example estimator vector for a
// measure at theta over data: the built-in pair_difference measure is
// evaluated here directly (spec §4.3's "special-cased built-in"); every
// other measure name is delegated to m.Sample.
func ComputeZHat(measure string, theta []float64, data *model.Data, m *model.Model, rng *rand.Rand) ([]float64, error) {
	if catalog.Measure(measure) == catalog.PairDifference {
		return pairDifferenceZHat(theta, data, m, rng)
	}
	z, err := m.Sample(measure, theta, data)
	if err != nil {
		return nil, fmt.Errorf("stats: computing zhat for %q: %w", measure, err)
	}
	return z, nil
}

// pairDifferenceZHat resamples both groups' predicted-minus-actual
// residuals with replacement to their common minimum size and returns the
// pointwise difference (yhat_M - y_M) - (yhat_F - y_F). data.GroupIndex
// (set by stats.PrepareLeafData) marks which of the two groups each row
// belongs to.
func pairDifferenceZHat(theta []float64, data *model.Data, m *model.Model, rng *rand.Rand) ([]float64, error) {
	groupA, groupB := splitPairGroups(data)
	if len(groupA.Labels) == 0 || len(groupB.Labels) == 0 {
		// No pairs can be drawn; Bound treats the empty vector as a
		// degenerate sample and reports (-Inf, +Inf).
		return []float64{}, nil
	}

	n := len(groupA.Labels)
	if len(groupB.Labels) < n {
		n = len(groupB.Labels)
	}

	residA := residuals(theta, groupA, m)
	residB := residuals(theta, groupB, m)

	z := make([]float64, n)
	for i := 0; i < n; i++ {
		a := residA[rng.Intn(len(residA))]
		b := residB[rng.Intn(len(residB))]
		z[i] = a - b
	}
	return z, nil
}

func residuals(theta []float64, d *model.Data, m *model.Model) []float64 {
	pred := m.Predict(theta, d.Features)
	out := make([]float64, len(d.Labels))
	for i, y := range d.Labels {
		out[i] = pred[i] - y
	}
	return out
}

// splitPairGroups partitions data by GroupIndex (0 -> group A, anything
// else -> group B), matching the original's "male_mask = X.M == 1" split
// (nodes.py's MEDCustomBaseNode.precalculate_data) rather than an
// arbitrary row-order cut. Data built without a GroupIndex (e.g.
// hand-constructed in a test) falls back to splitting at the midpoint.
func splitPairGroups(data *model.Data) (*model.Data, *model.Data) {
	if data.GroupIndex == nil {
		mid := len(data.Labels) / 2
		a := &model.Data{Features: data.Features[:mid], Labels: data.Labels[:mid]}
		b := &model.Data{Features: data.Features[mid:], Labels: data.Labels[mid:]}
		return a, b
	}

	a := &model.Data{}
	b := &model.Data{}
	for i, g := range data.GroupIndex {
		if g == 0 {
			a.Features = append(a.Features, data.Features[i])
			a.Labels = append(a.Labels, data.Labels[i])
		} else {
			b.Features = append(b.Features, data.Features[i])
			b.Labels = append(b.Labels, data.Labels[i])
		}
	}
	return a, b
}
