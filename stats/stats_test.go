package stats_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/dataset"
	"github.com/katalvlaran/seldonian-core/model"
	"github.com/katalvlaran/seldonian-core/stats"
)

func TestBoundManualIsLiteral(t *testing.T) {
	lower, upper, err := stats.Bound(catalog.BoundManual, catalog.BranchSafety, nil, 0, 0.05, true, true, -1.5, 2.5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, -1.5, lower)
	require.Equal(t, 2.5, upper)
}

func TestBoundRandomStaysInRange(t *testing.T) {
	lower, upper, err := stats.Bound(catalog.BoundRandom, catalog.BranchSafety, nil, 0, 0.05, true, true, 0, 0, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.True(t, lower >= 0 && lower <= 1)
	require.True(t, upper >= 2 && upper <= 3)
}

func TestBoundUnsupportedMethod(t *testing.T) {
	_, _, err := stats.Bound(catalog.BoundMethod("bogus"), catalog.BranchSafety, nil, 0, 0.05, true, true, 0, 0, nil)
	require.ErrorIs(t, err, stats.ErrUnsupportedBoundMethod)
}

func TestBoundTTestCandidateWidensSafety(t *testing.T) {
	z := []float64{0.1, 0.2, 0.15, 0.18, 0.12, 0.22, 0.09, 0.17}

	_, safetyUpper, err := stats.Bound(catalog.BoundTTest, catalog.BranchSafety, z, len(z), 0.05, false, true, 0, 0, nil)
	require.NoError(t, err)

	_, candidateUpper, err := stats.Bound(catalog.BoundTTest, catalog.BranchCandidate, z, len(z), 0.05, false, true, 0, 0, nil)
	require.NoError(t, err)

	mean := 0.0
	for _, v := range z {
		mean += v
	}
	mean /= float64(len(z))

	// candidate_selection inflates the half-width 2x relative to safety_test,
	// so it must sit strictly further from the mean on the requested side.
	require.Greater(t, candidateUpper-mean, safetyUpper-mean)
}

func TestBoundTTestOneSidedDoesNotSplitDelta(t *testing.T) {
	z := []float64{1, 2, 3, 4, 5, 2.5, 3.5}

	lowerOnly, _, err := stats.Bound(catalog.BoundTTest, catalog.BranchSafety, z, len(z), 0.05, true, false, 0, 0, nil)
	require.NoError(t, err)
	require.False(t, math.IsInf(lowerOnly, 0))

	_, upperSentinel, err := stats.Bound(catalog.BoundTTest, catalog.BranchSafety, z, len(z), 0.05, true, false, 0, 0, nil)
	require.NoError(t, err)
	require.True(t, math.IsInf(upperSentinel, 1))

	// A two-sided request splits delta, so its lower bound sits further out.
	twoSidedLower, _, err := stats.Bound(catalog.BoundTTest, catalog.BranchSafety, z, len(z), 0.05, true, true, 0, 0, nil)
	require.NoError(t, err)
	require.Less(t, twoSidedLower, lowerOnly)
}

func TestBoundTTestDegenerateSampleFallsBackToInfinity(t *testing.T) {
	z := []float64{0.5}
	lower, upper, err := stats.Bound(catalog.BoundTTest, catalog.BranchSafety, z, 1, 0.05, true, true, 0, 0, nil)
	require.NoError(t, err)
	require.True(t, math.IsInf(lower, -1))
	require.True(t, math.IsInf(upper, 1))
}

func TestPrepareLeafDataSupervisedMasksAndDropsSensitive(t *testing.T) {
	meta := dataset.Metadata{
		Regime:           dataset.RegimeSupervised,
		Columns:          []string{"x1", "M", "label"},
		SensitiveColumns: []string{"M"},
		LabelColumn:      "label",
	}
	rows := [][]float64{
		{1.0, 1, 0},
		{2.0, 0, 1},
		{3.0, 1, 1},
		{4.0, 0, 0},
	}
	ds, err := dataset.New(meta, rows, dataset.WithIncludeIntercept())
	require.NoError(t, err)

	data, datasize, err := stats.PrepareLeafData(string(catalog.PR), ds, []string{"M"}, dataset.RegimeSupervised, catalog.BranchSafety, 0, stats.RLParams{})
	require.NoError(t, err)
	require.Equal(t, 2, datasize) // two rows with M == 1
	require.Len(t, data.Labels, 2)
	for _, feat := range data.Features {
		require.Len(t, feat, 2) // intercept + x1, sensitive column dropped
		require.Equal(t, 1.0, feat[0])
	}
}

func TestPrepareLeafDataCandidateDatasizeScalesByFraction(t *testing.T) {
	meta := dataset.Metadata{
		Regime:      dataset.RegimeSupervised,
		Columns:     []string{"M", "label"},
		LabelColumn: "label",
	}
	rows := [][]float64{{1, 0}, {1, 1}, {0, 0}, {0, 1}}
	ds, err := dataset.New(meta, rows)
	require.NoError(t, err)

	_, datasize, err := stats.PrepareLeafData(string(catalog.PR), ds, nil, dataset.RegimeSupervised, catalog.BranchCandidate, 100, stats.RLParams{})
	require.NoError(t, err)
	require.Equal(t, 100, datasize) // unconditioned mask keeps all rows, fraction 1.0
}

func TestPrepareLeafDataRLGroupsByEpisodeAndNormalizes(t *testing.T) {
	meta := dataset.Metadata{
		Regime:          dataset.RegimeRL,
		Columns:         []string{"episode", "reward"},
		EpisodeIndexCol: "episode",
		RewardCol:       "reward",
	}
	rows := [][]float64{
		{0, 1},
		{0, 1},
		{1, 2},
	}
	ds, err := dataset.New(meta, rows)
	require.NoError(t, err)

	rl := stats.RLParams{
		Gamma: 1.0, MinReturn: 0, MaxReturn: 2,
		EpisodeIndexColumn: "episode", RewardColumn: "reward",
	}
	data, datasize, err := stats.PrepareLeafData(string(catalog.JPiNew), ds, nil, dataset.RegimeRL, catalog.BranchSafety, 0, rl)
	require.NoError(t, err)
	require.Equal(t, 3, datasize)
	require.Len(t, data.EpisodeRewardSums, 2)
	require.InDelta(t, 1.0, data.EpisodeRewardSums[0], 1e-9) // (1+1)/2
	require.InDelta(t, 1.0, data.EpisodeRewardSums[1], 1e-9) // 2/2
}

func TestComputeZHatDelegatesToModel(t *testing.T) {
	m := model.New(
		func(theta []float64, X [][]float64) []float64 { return nil },
		func(X [][]float64, Y []float64) []float64 { return nil },
		model.WithStatistic("PR",
			func(theta []float64, data *model.Data) (float64, error) { return 0.5, nil },
			func(theta []float64, data *model.Data) ([]float64, error) { return []float64{1, 0, 1}, nil },
		),
	)
	z, err := stats.ComputeZHat("PR", nil, &model.Data{}, m, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 0, 1}, z)
}

func TestComputeZHatPairDifference(t *testing.T) {
	m := model.New(
		func(theta []float64, X [][]float64) []float64 {
			out := make([]float64, len(X))
			for i := range X {
				out[i] = X[i][0] * 2
			}
			return out
		},
		func(X [][]float64, Y []float64) []float64 { return nil },
	)
	data := &model.Data{
		Features: [][]float64{{1}, {2}, {3}, {4}},
		Labels:   []float64{1, 2, 10, 20},
	}
	z, err := stats.ComputeZHat(string(catalog.PairDifference), nil, data, m, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Len(t, z, 2) // min(groupA=2, groupB=2)
}

func TestComputeZHatUnknownMeasure(t *testing.T) {
	m := model.New(
		func(theta []float64, X [][]float64) []float64 { return nil },
		func(X [][]float64, Y []float64) []float64 { return nil },
	)
	_, err := stats.ComputeZHat("nonexistent", nil, &model.Data{}, m, nil)
	require.Error(t, err)
}
