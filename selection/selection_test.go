package selection_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/dataset"
	"github.com/katalvlaran/seldonian-core/model"
	"github.com/katalvlaran/seldonian-core/selection"
	"github.com/katalvlaran/seldonian-core/tree"
)

func classificationDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	meta := dataset.Metadata{
		Regime:      dataset.RegimeSupervised,
		SubRegime:   dataset.SubRegimeClassification,
		Columns:     []string{"x", "label"},
		LabelColumn: "label",
	}
	rows := [][]float64{
		{-3, 0}, {-2, 0}, {-1, 0}, {-0.5, 0},
		{0.5, 1}, {1, 1}, {2, 1}, {3, 1},
		{-2.5, 0}, {2.5, 1},
	}
	ds, err := dataset.New(meta, rows)
	require.NoError(t, err)
	return ds
}

func buildDriver(t *testing.T, expr string, cfg selection.Config) *selection.Driver {
	t.Helper()
	ds := classificationDataset(t)
	tr, err := tree.Build(expr, 0.05, nil)
	require.NoError(t, err)

	m := model.NewLogisticRegression(25, 0.3)
	primary := func(theta []float64, X [][]float64, Y []float64) float64 {
		ll, _ := m.Evaluate("log_loss", theta, &model.Data{Features: X, Labels: Y})
		return ll
	}

	d, err := selection.NewDriver(ds, []*tree.ParseTree{tr}, m, primary, cfg)
	require.NoError(t, err)
	return d
}

// A constraint whose upper bound is always strictly negative regardless of
// theta or data (PR is in [0,1], so PR-2 <= -1) must pass the safety test
// no matter what the optimizer finds.
func TestRunPassesSafetyForAlwaysSatisfiableConstraint(t *testing.T) {
	cfg := selection.DefaultConfig(
		selection.WithOptimizer(catalog.OptimizerNelderMead),
		selection.WithNumIters(20),
	)
	d := buildDriver(t, "PR - 2", cfg)

	result, err := d.Run([]float64{0})
	require.NoError(t, err)
	require.False(t, result.NoSolution)
	require.True(t, result.PassedSafety)
}

// A constraint whose upper bound is always strictly positive (3+PR, PR>=0)
// can never be satisfied, so gradient descent must exhaust its iteration
// budget without ever recording a feasible iterate.
func TestRunReportsNoSolutionForUnsatisfiableConstraint(t *testing.T) {
	cfg := selection.DefaultConfig(
		selection.WithOptimizer(catalog.OptimizerGradient),
		selection.WithNumIters(3),
	)
	d := buildDriver(t, "3 + PR", cfg)

	result, err := d.Run([]float64{0})
	require.NoError(t, err)
	require.True(t, result.NoSolution)
}

func TestRunRejectsUnsupportedOptimizer(t *testing.T) {
	cfg := selection.DefaultConfig(selection.WithOptimizer("not-an-optimizer"))
	d := buildDriver(t, "PR - 2", cfg)

	_, err := d.Run([]float64{0})
	require.ErrorIs(t, err, selection.ErrUnsupportedOptimizer)
}

func TestNewDriverAcceptsFracSafetyOption(t *testing.T) {
	ds := classificationDataset(t)
	tr, err := tree.Build("PR - 2", 0.05, nil)
	require.NoError(t, err)
	m := model.NewLogisticRegression(1, 0.1)
	primary := func(theta []float64, X [][]float64, Y []float64) float64 { return 0 }

	cfg := selection.DefaultConfig(selection.WithFracSafety(0.3))
	d, err := selection.NewDriver(ds, []*tree.ParseTree{tr}, m, primary, cfg)
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestWithFracSafetyPanicsOutsideUnitInterval(t *testing.T) {
	require.Panics(t, func() { selection.DefaultConfig(selection.WithFracSafety(1.5)) })
}

func TestWithNumItersPanicsOnNonPositive(t *testing.T) {
	require.Panics(t, func() { selection.DefaultConfig(selection.WithNumIters(0)) })
}
