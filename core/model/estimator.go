package model

import "gonum.org/v1/gonum/mat"

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator はスケーラーなど軽量な変換器に埋め込む学習状態
//
// gob で保存されるよう State は公開フィールドにしている。
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// Fitter は教師ありで学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は二値/多値分類器のインターフェース
type Classifier interface {
	Fitter
	Predictor

	// DecisionFunction は各サンプルの決定関数値を返す
	DecisionFunction(X mat.Matrix) ([]float64, error)

	// Score は正解率を返す
	Score(X, y mat.Matrix) (float64, error)

	// Classes は学習時に観測したクラスラベルを返す
	Classes() []float64
}
