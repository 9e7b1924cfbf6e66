package preprocessing

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/adpipe/dataset"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// Split は行単位で分割された学習/評価データ
type Split struct {
	XTrain *dataset.Frame
	XTest  *dataset.Frame
	YTrain []float64
	YTest  []float64

	// 元の行番号
	TrainIndex []int
	TestIndex  []int
}

// TrainTestSplit は X と y を seed で決まる順列で学習/評価に分割する
//
// パラメータ:
//   - X: 特徴量のFrame
//   - y: ラベル (len(y) == X.Len())
//   - testSize: 評価データの割合 (0 < testSize < 1)
//   - seed: 乱数シード
//
// 評価データ数は ceil(testSize × n)、学習データ数は n − nTest。
// rand.New(rand.NewSource(seed)).Perm(n) の先頭 nTest 個が評価データになる。
// 同じ入力と seed に対して結果は常に同じ。
func TrainTestSplit(X *dataset.Frame, y []float64, testSize float64, seed int64) (*Split, error) {
	n := X.Len()
	if len(y) != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, len(y), 0)
	}
	if !(testSize > 0 && testSize < 1) {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%g the resulting train or test set would be empty", n, testSize))
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	s := &Split{
		TestIndex:  append([]int(nil), perm[:nTest]...),
		TrainIndex: append([]int(nil), perm[nTest:]...),
	}
	s.XTest = X.Take(s.TestIndex)
	s.XTrain = X.Take(s.TrainIndex)
	s.YTest = pick(y, s.TestIndex)
	s.YTrain = pick(y, s.TrainIndex)
	return s, nil
}

func pick(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
