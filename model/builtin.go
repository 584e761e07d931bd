package model

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrDimensionMismatch reports that X rows and theta disagree in length.
// The built-in constructors' Fit/Predict closures have no error result and
// do not check dimensions, so they never return it.
var ErrDimensionMismatch = errors.New("model: feature/parameter dimension mismatch")

func sigmoid(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }

func dot(x, theta []float64) float64 {
	var s float64
	for i, v := range x {
		s += v * theta[i]
	}
	return s
}

// NewLogisticRegression builds the default supervised-classification model
// (interface2spec.py's LogisticRegressionModel): Predict applies the
// logistic sigmoid to theta.X, Fit runs a fixed number of full-batch
// gradient-descent steps on the binary cross-entropy loss seeded at zero,
// and PR/FPR/FNR/mean_error are registered as statistics so constraint
// trees can reference them directly; log_loss is registered as an
// evaluator only. MSE is not registered for this model.
//
// No statistic gradients are registered, so gradient.Of uses its
// finite-difference fallback for every leaf of this model.
func NewLogisticRegression(iters int, lr float64) *Model {
	predict := func(theta []float64, X [][]float64) []float64 {
		out := make([]float64, len(X))
		for i, x := range X {
			out[i] = sigmoid(dot(x, theta))
		}
		return out
	}

	fit := func(X [][]float64, Y []float64) []float64 {
		if len(X) == 0 {
			return nil
		}
		dim := len(X[0])
		theta := make([]float64, dim)
		for iter := 0; iter < iters; iter++ {
			grad := make([]float64, dim)
			for i, x := range X {
				p := sigmoid(dot(x, theta))
				diff := p - Y[i]
				for j, xj := range x {
					grad[j] += diff * xj
				}
			}
			n := float64(len(X))
			for j := range theta {
				theta[j] -= lr * grad[j] / n
			}
		}
		return theta
	}

	m := New(predict, fit,
		WithStatistic("PR", meanPredictedPositiveRate, samplePredictedPositiveRate),
		WithStatistic("FPR", falsePositiveRate, sampleFalsePositiveRate),
		WithStatistic("FNR", falseNegativeRate, sampleFalseNegativeRate),
		WithStatistic("mean_error", meanError(predict), sampleMeanError(predict)),
	)
	m.EvaluateStatistic["log_loss"] = logLoss(predict)
	return m
}

// NewLinearRegression builds the default supervised-regression model
// (LinearRegressionModel): Predict is theta'x, Fit solves the closed-form
// normal equations via gonum/mat, and mean_error/MSE are registered.
// Nothing is registered for pair_difference: stats computes it from
// Predict's residuals.
func NewLinearRegression() *Model {
	predict := func(theta []float64, X [][]float64) []float64 {
		out := make([]float64, len(X))
		for i, x := range X {
			out[i] = dot(x, theta)
		}
		return out
	}

	fit := func(X [][]float64, Y []float64) []float64 {
		if len(X) == 0 {
			return nil
		}
		n, dim := len(X), len(X[0])
		xData := make([]float64, 0, n*dim)
		for _, row := range X {
			xData = append(xData, row...)
		}
		xMat := mat.NewDense(n, dim, xData)
		yVec := mat.NewVecDense(n, Y)

		var xtx mat.Dense
		xtx.Mul(xMat.T(), xMat)
		var xty mat.VecDense
		xty.MulVec(xMat.T(), yVec)

		var thetaVec mat.VecDense
		if err := thetaVec.SolveVec(&xtx, &xty); err != nil {
			return make([]float64, dim)
		}
		theta := make([]float64, dim)
		for i := range theta {
			theta[i] = thetaVec.AtVec(i)
		}
		return theta
	}

	m := New(predict, fit,
		WithStatistic("mean_error", meanError(predict), sampleMeanError(predict)),
		WithStatistic("MSE", mse(predict), sampleMSE(predict)),
	)
	return m
}

// NewLinearSoftmax builds the default reinforcement-learning policy model
// (LinearSoftmaxModel): J_pi_new is the mean of the dataset's already-
// discounted, normalized per-episode returns, matching spec §4.3's RL leaf
// preparation. Predict/Fit are stubs (policy parameters are evaluated only
// through J_pi_new in this regime).
func NewLinearSoftmax() *Model {
	predict := func(theta []float64, X [][]float64) []float64 { return nil }
	fit := func(X [][]float64, Y []float64) []float64 { return []float64{0} }

	m := New(predict, fit,
		WithStatistic(string(jPiNewName), jPiNewStatistic, jPiNewSample),
	)
	return m
}

const jPiNewName = "J_pi_new"

func jPiNewStatistic(theta []float64, data *Data) (float64, error) {
	if len(data.EpisodeRewardSums) == 0 {
		return 0, nil
	}
	return stat.Mean(data.EpisodeRewardSums, nil), nil
}

func jPiNewSample(theta []float64, data *Data) ([]float64, error) {
	return data.EpisodeRewardSums, nil
}

func meanPredictedPositiveRate(theta []float64, data *Data) (float64, error) {
	z, _ := samplePredictedPositiveRate(theta, data)
	return stat.Mean(z, nil), nil
}

func samplePredictedPositiveRate(theta []float64, data *Data) ([]float64, error) {
	out := make([]float64, len(data.Features))
	for i, x := range data.Features {
		if sigmoid(dot(x, theta)) >= 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

func falsePositiveRate(theta []float64, data *Data) (float64, error) {
	z, _ := sampleFalsePositiveRate(theta, data)
	if len(z) == 0 {
		return 0, nil
	}
	return stat.Mean(z, nil), nil
}

// sampleFalsePositiveRate returns, over the rows whose true label is
// negative, whether the model predicted positive; the mean over that
// restricted set is the false positive rate (spec's FPR measure).
func sampleFalsePositiveRate(theta []float64, data *Data) ([]float64, error) {
	var out []float64
	for i, x := range data.Features {
		if data.Labels[i] != 0 {
			continue
		}
		pred := 0.0
		if sigmoid(dot(x, theta)) >= 0.5 {
			pred = 1
		}
		out = append(out, pred)
	}
	return out, nil
}

func falseNegativeRate(theta []float64, data *Data) (float64, error) {
	z, _ := sampleFalseNegativeRate(theta, data)
	if len(z) == 0 {
		return 0, nil
	}
	return stat.Mean(z, nil), nil
}

func sampleFalseNegativeRate(theta []float64, data *Data) ([]float64, error) {
	var out []float64
	for i, x := range data.Features {
		if data.Labels[i] != 1 {
			continue
		}
		pred := 0.0
		if sigmoid(dot(x, theta)) < 0.5 {
			pred = 1
		}
		out = append(out, pred)
	}
	return out, nil
}

func meanError(predict PredictFunc) StatisticFunc {
	return func(theta []float64, data *Data) (float64, error) {
		z, _ := sampleMeanError(predict)(theta, data)
		return stat.Mean(z, nil), nil
	}
}

func sampleMeanError(predict PredictFunc) SamplerFunc {
	return func(theta []float64, data *Data) ([]float64, error) {
		preds := predict(theta, data.Features)
		out := make([]float64, len(preds))
		for i, p := range preds {
			out[i] = p - data.Labels[i]
		}
		return out, nil
	}
}

func mse(predict PredictFunc) StatisticFunc {
	return func(theta []float64, data *Data) (float64, error) {
		z, _ := sampleMSE(predict)(theta, data)
		return stat.Mean(z, nil), nil
	}
}

func sampleMSE(predict PredictFunc) SamplerFunc {
	return func(theta []float64, data *Data) ([]float64, error) {
		preds := predict(theta, data.Features)
		out := make([]float64, len(preds))
		for i, p := range preds {
			d := p - data.Labels[i]
			out[i] = d * d
		}
		return out, nil
	}
}

func logLoss(predict PredictFunc) StatisticFunc {
	return func(theta []float64, data *Data) (float64, error) {
		preds := predict(theta, data.Features)
		var sum float64
		for i, p := range preds {
			p = math.Min(math.Max(p, 1e-12), 1-1e-12)
			y := data.Labels[i]
			sum += -(y*math.Log(p) + (1-y)*math.Log(1-p))
		}
		return sum / float64(len(preds)), nil
	}
}
