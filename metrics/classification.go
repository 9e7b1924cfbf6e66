// Package metrics は分類モデルの評価指標を提供する
package metrics

import (
	"sort"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy は正解率（一致したラベルの割合）を計算する
//
// パラメータ:
//   - yTrue: 正解ラベル
//   - yPred: 予測ラベル
//
// 戻り値:
//   - float64: [0, 1] の正解率
//   - error: 空の入力や長さの不一致
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix は列ベクトル行列（先頭列を使用）に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := firstColumns("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// ClassificationError は誤分類率 (1 - Accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// AUC はROC曲線下面積を順位統計量 (Mann-Whitney U) から計算する
//
// yTrue は 0/1 のみ、yScore は決定関数値など大きいほど陽性らしいスコア。
// 同順位には平均順位を与える。片方のクラスしか存在しない場合は 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}

	idx := make([]int, n)
	nPos := 0
	for i := 0; i < n; i++ {
		idx[i] = i
		switch yTrue.AtVec(i) {
		case 1:
			nPos++
		case 0:
		default:
			return 0, errors.NewValueError("AUC", "yTrue must contain only 0 and 1")
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return yScore.AtVec(idx[a]) < yScore.AtVec(idx[b])
	})

	// 同順位グループごとに平均順位を足し込む
	rankSumPos := 0.0
	for start := 0; start < n; {
		end := start + 1
		for end < n && yScore.AtVec(idx[end]) == yScore.AtVec(idx[start]) {
			end++
		}
		avgRank := float64(start+end+1) / 2 // 1-based
		for k := start; k < end; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSumPos += avgRank
			}
		}
		start = end
	}

	u := rankSumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// AUCMatrix は列ベクトル行列（先頭列を使用）に対してAUCを計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	t, s, err := firstColumns("AUCMatrix", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

// ConfusionMatrix は二値分類の混同行列
type ConfusionMatrix struct {
	TP, FP, TN, FN int
}

// BinaryConfusion は positive を陽性クラスとして混同行列を数える
func BinaryConfusion(yTrue, yPred *mat.VecDense, positive float64) (ConfusionMatrix, error) {
	var cm ConfusionMatrix
	n, err := checkPair("BinaryConfusion", yTrue, yPred)
	if err != nil {
		return cm, err
	}
	for i := 0; i < n; i++ {
		actual := yTrue.AtVec(i) == positive
		predicted := yPred.AtVec(i) == positive
		switch {
		case actual && predicted:
			cm.TP++
		case !actual && predicted:
			cm.FP++
		case actual && !predicted:
			cm.FN++
		default:
			cm.TN++
		}
	}
	return cm, nil
}

// Precision は TP / (TP + FP)。予測陽性が0件なら0
func (c ConfusionMatrix) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall は TP / (TP + FN)。実陽性が0件なら0
func (c ConfusionMatrix) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

func checkPair(op string, a, b *mat.VecDense) (int, error) {
	if a == nil || b == nil || a.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if b.Len() != a.Len() {
		return 0, errors.NewDimensionError(op, a.Len(), b.Len(), 0)
	}
	return a.Len(), nil
}

func firstColumns(op string, a, b mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if a == nil || b == nil {
		return nil, nil, errors.NewValueError(op, "nil matrix")
	}
	if m, ok := a.(*mat.Dense); ok && m.IsEmpty() {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if m, ok := b.(*mat.Dense); ok && m.IsEmpty() {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	ra, _ := a.Dims()
	rb, _ := b.Dims()
	if ra != rb {
		return nil, nil, errors.NewDimensionError(op, ra, rb, 0)
	}
	return mat.NewVecDense(ra, mat.Col(nil, 0, a)), mat.NewVecDense(rb, mat.Col(nil, 0, b)), nil
}
