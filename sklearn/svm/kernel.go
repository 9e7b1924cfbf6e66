package svm

import (
	"math"

	"github.com/YuminosukeSato/adpipe/core/parallel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	KernelRBF    = "rbf"
	KernelLinear = "linear"

	GammaScale = "scale"
	GammaAuto  = "auto"
)

// kernelFunc evaluates K(a, b)
type kernelFunc func(a, b []float64) float64

func rbfKernel(gamma float64) kernelFunc {
	return func(a, b []float64) float64 {
		d := floats.Distance(a, b, 2)
		return math.Exp(-gamma * d * d)
	}
}

func linearKernel(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// scaleGamma は sklearn の gamma="scale" と同じく 1 / (n_features * X.var()) を返す
// 分散が0の場合は1
func scaleGamma(X [][]float64) float64 {
	nFeatures := len(X[0])
	all := make([]float64, 0, len(X)*nFeatures)
	for _, row := range X {
		all = append(all, row...)
	}
	_, variance := stat.PopMeanVariance(all, nil)
	if variance == 0 {
		return 1.0
	}
	return 1.0 / (float64(nFeatures) * variance)
}

// kernelMatrix は対称なカーネル行列を上三角だけ計算して埋める
func kernelMatrix(X [][]float64, k kernelFunc, workers int) *mat.SymDense {
	n := len(X)
	K := mat.NewSymDense(n, nil)
	parallel.ParallelizeN(n, workers, func(start, end int) {
		for i := start; i < end; i++ {
			for j := i; j < n; j++ {
				// SetSym は (i, j) と (j, i) の両方に書くが、行 i の担当者だけが書く
				K.SetSym(i, j, k(X[i], X[j]))
			}
		}
	})
	return K
}

func rows(X mat.Matrix) [][]float64 {
	r, _ := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, X)
	}
	return out
}
