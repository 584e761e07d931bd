package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/seldonian-core/model"
)

func TestLogisticRegressionFitSeparatesLinearlySeparableData(t *testing.T) {
	X := [][]float64{{-2}, {-1}, {1}, {2}}
	Y := []float64{0, 0, 1, 1}

	m := model.NewLogisticRegression(2000, 0.5)
	theta := m.Fit(X, Y)
	require.Len(t, theta, 1)
	require.Greater(t, theta[0], 0.0)

	preds := m.Predict(theta, X)
	require.Less(t, preds[0], 0.5)
	require.Greater(t, preds[3], 0.5)
}

func TestLogisticRegressionPRStatisticMatchesManualCount(t *testing.T) {
	m := model.NewLogisticRegression(1, 0.1)
	data := &model.Data{Features: [][]float64{{10}, {-10}, {10}, {-10}}, Labels: []float64{1, 0, 1, 0}}
	pr, err := m.Evaluate("PR", []float64{1}, data)
	require.NoError(t, err)
	require.InDelta(t, 0.5, pr, 1e-9)
}

func TestLinearRegressionFitRecoversExactLine(t *testing.T) {
	// y = 2x + 1, noiseless, so the normal equations recover theta exactly.
	X := [][]float64{{1, 0}, {1, 1}, {1, 2}, {1, 3}}
	Y := []float64{1, 3, 5, 7}

	m := model.NewLinearRegression()
	theta := m.Fit(X, Y)
	require.InDelta(t, 1.0, theta[0], 1e-6)
	require.InDelta(t, 2.0, theta[1], 1e-6)
}

func TestLinearRegressionMeanErrorIsZeroAtExactFit(t *testing.T) {
	X := [][]float64{{1, 0}, {1, 1}, {1, 2}}
	Y := []float64{1, 3, 5}
	m := model.NewLinearRegression()
	theta := m.Fit(X, Y)

	me, err := m.Evaluate("mean_error", theta, &model.Data{Features: X, Labels: Y})
	require.NoError(t, err)
	require.InDelta(t, 0.0, me, 1e-6)
}

func TestLinearSoftmaxJPiNewIsMeanOfEpisodeReturns(t *testing.T) {
	m := model.NewLinearSoftmax()
	data := &model.Data{EpisodeRewardSums: []float64{0.2, 0.4, 0.6}}
	j, err := m.Evaluate("J_pi_new", nil, data)
	require.NoError(t, err)
	require.InDelta(t, 0.4, j, 1e-9)
}
