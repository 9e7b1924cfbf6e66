package preprocessing

import (
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// TransformedSplit は前処理済みの数値行列と、それを作った学習済み変換器
type TransformedSplit struct {
	XTrain [][]float64
	XTest  [][]float64
	YTrain []float64
	YTest  []float64

	FeatureNames []string
	Transformer  *ColumnTransformer
}

// NewTransformedSplit は split の学習側で ct を学習し、両側を変換する
//
// 評価データは学習済みパラメータで変換されるだけで、ct の学習には使われない。
func NewTransformedSplit(ct *ColumnTransformer, split *Split) (*TransformedSplit, error) {
	XTrain, err := ct.FitTransform(split.XTrain)
	if err != nil {
		return nil, err
	}
	XTest, err := ct.Transform(split.XTest)
	if err != nil {
		return nil, err
	}
	return &TransformedSplit{
		XTrain:       rows(XTrain),
		XTest:        rows(XTest),
		YTrain:       append([]float64(nil), split.YTrain...),
		YTest:        append([]float64(nil), split.YTest...),
		FeatureNames: append([]string(nil), ct.FeatureNames...),
		Transformer:  ct,
	}, nil
}

// Matrices は学習/評価データを gonum の行列とラベル列ベクトルで返す
func (t *TransformedSplit) Matrices() (XTrain, yTrain, XTest, yTest *mat.Dense, err error) {
	if len(t.XTrain) == 0 || len(t.XTest) == 0 {
		return nil, nil, nil, nil, errors.NewModelError("TransformedSplit.Matrices", "empty split", errors.ErrEmptyData)
	}
	return dense(t.XTrain), mat.NewDense(len(t.YTrain), 1, append([]float64(nil), t.YTrain...)),
		dense(t.XTest), mat.NewDense(len(t.YTest), 1, append([]float64(nil), t.YTest...)), nil
}

// NFeatures は出力列数を返す
func (t *TransformedSplit) NFeatures() int {
	return len(t.FeatureNames)
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

func dense(x [][]float64) *mat.Dense {
	c := len(x[0])
	data := make([]float64, 0, len(x)*c)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(len(x), c, data)
}
