package svm

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/adpipe/core/model"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// blobs は (-2,-2) と (2,2) を中心とする2クラスのデータを作る
func blobs(n int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		center := -2.0
		label := 0.0
		if i%2 == 1 {
			center = 2.0
			label = 1.0
		}
		X.Set(i, 0, center+rng.NormFloat64()*0.5)
		X.Set(i, 1, center+rng.NormFloat64()*0.5)
		y.Set(i, 0, label)
	}
	return X, y
}

func TestSVCSeparableBlobs(t *testing.T) {
	X, y := blobs(80, 1)

	clf := NewSVC(WithC(1), WithKernel("rbf"), WithGamma("scale"), WithRandomState(42))
	require.NoError(t, clf.Fit(X, y))

	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
	assert.Equal(t, []float64{0, 1}, clf.Classes())
	assert.Greater(t, clf.NSupport(), 0)
	assert.Less(t, clf.NSupport(), 80)

	query := mat.NewDense(2, 2, []float64{-2, -2, 2, 2})
	pred, err := clf.Predict(query)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))

	dec, err := clf.DecisionFunction(query)
	require.NoError(t, err)
	assert.Less(t, dec[0], 0.0)
	assert.Greater(t, dec[1], 0.0)
}

func TestSVCDualFeasibility(t *testing.T) {
	X, y := blobs(60, 3)
	clf := NewSVC(WithC(0.5))
	require.NoError(t, clf.Fit(X, y))

	// yᵀα = 0 かつ 0 < α ≤ C
	sum := 0.0
	for _, c := range clf.DualCoef {
		sum += c
		assert.LessOrEqual(t, math.Abs(c), 0.5+1e-12)
		assert.Greater(t, math.Abs(c), 0.0)
	}
	assert.InDelta(t, 0, sum, 1e-9)
}

func TestSVCXORWithRBF(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 1,
		0, 1,
		1, 0,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	clf := NewSVC(WithC(10), WithGammaValue(2))
	require.NoError(t, clf.Fit(X, y))

	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestSVCLinearKernel(t *testing.T) {
	X, y := blobs(40, 5)
	clf := NewSVC(WithKernel("linear"))
	require.NoError(t, clf.Fit(X, y))

	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestSVCDeterministic(t *testing.T) {
	X, y := blobs(100, 7)

	a := NewSVC(WithNJobs(1))
	require.NoError(t, a.Fit(X, y))
	b := NewSVC(WithNJobs(4))
	require.NoError(t, b.Fit(X, y))

	assert.Equal(t, a.DualCoef, b.DualCoef)
	assert.Equal(t, a.SupportIndex, b.SupportIndex)
	assert.Equal(t, a.Intercept, b.Intercept)
	assert.Equal(t, a.NIter, b.NIter)
}

func TestSVCGobRoundTrip(t *testing.T) {
	X, y := blobs(50, 9)
	clf := NewSVC()
	require.NoError(t, clf.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(clf, &buf))

	var loaded SVC
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	want, err := clf.DecisionFunction(X)
	require.NoError(t, err)
	got, err := loaded.DecisionFunction(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSVCErrors(t *testing.T) {
	X, y := blobs(20, 11)

	clf := NewSVC()
	_, err := clf.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, clf.Fit(X, y))
	_, err = clf.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	var dim *errors.DimensionError
	require.True(t, errors.As(err, &dim))
	assert.Equal(t, 2, dim.Expected)
	assert.Equal(t, 3, dim.Got)

	oneClass := mat.NewDense(20, 1, nil)
	err = NewSVC().Fit(X, oneClass)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	err = NewSVC(WithC(0)).Fit(X, y)
	var val *errors.ValidationError
	assert.True(t, errors.As(err, &val))

	err = NewSVC(WithKernel("poly")).Fit(X, y)
	assert.True(t, errors.As(err, &val))

	err = NewSVC().Fit(X, mat.NewDense(19, 1, nil))
	assert.True(t, errors.As(err, &dim))
}

func TestSVCConvergenceWarning(t *testing.T) {
	var warned error
	errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(nil)

	X, y := blobs(40, 13)
	clf := NewSVC(WithMaxIter(1))
	require.NoError(t, clf.Fit(X, y))

	var cw *errors.ConvergenceWarning
	require.True(t, errors.As(warned, &cw))
	assert.Equal(t, 1, clf.NIter)
}

func TestScaleGamma(t *testing.T) {
	// 全要素 {0, 2, 0, 2} の母分散は1、特徴量数2 → gamma = 0.5
	assert.InDelta(t, 0.5, scaleGamma([][]float64{{0, 2}, {0, 2}}), 1e-12)
	assert.Equal(t, 1.0, scaleGamma([][]float64{{3, 3}, {3, 3}}))
}

func TestKernelMatrixSymmetric(t *testing.T) {
	X := [][]float64{{0, 0}, {1, 0}, {0, 2}}
	K := kernelMatrix(X, rbfKernel(0.5), 2)
	for i := range X {
		assert.InDelta(t, 1.0, K.At(i, i), 1e-12)
		for j := range X {
			assert.Equal(t, K.At(i, j), K.At(j, i))
		}
	}
	assert.InDelta(t, math.Exp(-0.5), K.At(0, 1), 1e-12)
	assert.InDelta(t, math.Exp(-2.5), K.At(1, 2), 1e-12)
}
