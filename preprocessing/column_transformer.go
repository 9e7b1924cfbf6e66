package preprocessing

import (
	"encoding/gob"
	"fmt"

	"github.com/YuminosukeSato/adpipe/core/model"
	"github.com/YuminosukeSato/adpipe/dataset"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	// NamedTransformer.Transformer はインターフェースなので具象型を登録しておく
	gob.Register(&MinMaxScaler{})
	gob.Register(&StandardScaler{})
}

// Remainder の取りうる値
const (
	RemainderPassthrough = "passthrough"
	RemainderDrop        = "drop"
)

// ColumnTransformer は名前付き列ごとに変換器を適用し、結果を横に連結する
//
// 出力列の順序は Transformers の登録順、その後に Remainder が passthrough の場合は
// どの変換器にも指定されていない列が元の順序で続く。
// 同じ列を複数の変換器に指定してよい（MinMax と Standard を並べる用途）。
type ColumnTransformer struct {
	model.BaseEstimator

	Transformers []model.NamedTransformer
	Remainder    string

	// Fit 時に確定する
	InputColumns       []string
	PassthroughColumns []string
	FeatureNames       []string
}

// NewColumnTransformer は新しいColumnTransformerを作成する
//
// 使用例:
//
//	ct := preprocessing.NewColumnTransformer(preprocessing.RemainderPassthrough,
//	    model.NamedTransformer{Name: "minmax", Transformer: preprocessing.NewMinMaxScalerDefault(), Columns: num},
//	    model.NamedTransformer{Name: "standard", Transformer: preprocessing.NewStandardScalerDefault(), Columns: num},
//	)
//	XTrain, err := ct.FitTransform(trainFrame)
func NewColumnTransformer(remainder string, transformers ...model.NamedTransformer) *ColumnTransformer {
	return &ColumnTransformer{
		Transformers: transformers,
		Remainder:    remainder,
	}
}

// Fit は各変換器をそれぞれの列で学習する
func (ct *ColumnTransformer) Fit(f *dataset.Frame) error {
	_, err := ct.FitTransform(f)
	return err
}

// FitTransform は各変換器を学習し、同じデータを変換して連結した行列を返す
func (ct *ColumnTransformer) FitTransform(f *dataset.Frame) (*mat.Dense, error) {
	if ct.Remainder != RemainderPassthrough && ct.Remainder != RemainderDrop {
		return nil, errors.NewValidationError("remainder", "must be passthrough or drop", ct.Remainder)
	}
	if f.Len() == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}

	used := make(map[string]struct{})
	var missing []string
	for _, nt := range ct.Transformers {
		missing = append(missing, f.Missing(nt.Columns...)...)
		for _, col := range nt.Columns {
			used[col] = struct{}{}
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaMismatchError("ColumnTransformer.Fit", unique(missing))
	}

	ct.InputColumns = append([]string(nil), f.Header...)
	ct.PassthroughColumns = nil
	if ct.Remainder == RemainderPassthrough {
		for _, col := range f.Header {
			if _, ok := used[col]; !ok {
				ct.PassthroughColumns = append(ct.PassthroughColumns, col)
			}
		}
	}

	blocks := make([]mat.Matrix, 0, len(ct.Transformers)+1)
	ct.FeatureNames = nil
	for _, nt := range ct.Transformers {
		X, err := f.Dense(nt.Columns)
		if err != nil {
			return nil, err
		}
		out, err := nt.Transformer.FitTransform(X)
		if err != nil {
			return nil, errors.Wrapf(err, "fit transformer %q", nt.Name)
		}
		blocks = append(blocks, out)
		for _, col := range nt.Columns {
			ct.FeatureNames = append(ct.FeatureNames, nt.Name+"__"+col)
		}
	}
	if len(ct.PassthroughColumns) > 0 {
		X, err := f.Dense(ct.PassthroughColumns)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, X)
		for _, col := range ct.PassthroughColumns {
			ct.FeatureNames = append(ct.FeatureNames, "remainder__"+col)
		}
	}

	if len(ct.FeatureNames) == 0 {
		return nil, errors.NewValueError("ColumnTransformer.Fit", "no output columns")
	}

	ct.SetFitted()
	return hstack(f.Len(), blocks), nil
}

// Transform は学習済みの変換器で f を変換する
//
// f は Fit 時と同じ列を持つ必要がある（列順は問わない）。
func (ct *ColumnTransformer) Transform(f *dataset.Frame) (*mat.Dense, error) {
	if !ct.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	if missing := f.Missing(ct.InputColumns...); len(missing) > 0 {
		return nil, errors.NewSchemaMismatchError("ColumnTransformer.Transform", missing)
	}
	if f.Width() != len(ct.InputColumns) {
		return nil, errors.NewDimensionError("ColumnTransformer.Transform", len(ct.InputColumns), f.Width(), 1)
	}

	blocks := make([]mat.Matrix, 0, len(ct.Transformers)+1)
	for _, nt := range ct.Transformers {
		X, err := f.Dense(nt.Columns)
		if err != nil {
			return nil, err
		}
		out, err := nt.Transformer.Transform(X)
		if err != nil {
			return nil, errors.Wrapf(err, "apply transformer %q", nt.Name)
		}
		blocks = append(blocks, out)
	}
	if len(ct.PassthroughColumns) > 0 {
		X, err := f.Dense(ct.PassthroughColumns)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, X)
	}
	return hstack(f.Len(), blocks), nil
}

// NOutputFeatures は出力列数を返す
func (ct *ColumnTransformer) NOutputFeatures() int {
	return len(ct.FeatureNames)
}

// String は変換器の文字列表現を返す
func (ct *ColumnTransformer) String() string {
	names := make([]string, len(ct.Transformers))
	for i, nt := range ct.Transformers {
		names[i] = fmt.Sprintf("%s%v", nt.Name, nt.Columns)
	}
	return fmt.Sprintf("ColumnTransformer(transformers=%v, remainder=%s)", names, ct.Remainder)
}

func hstack(rows int, blocks []mat.Matrix) *mat.Dense {
	width := 0
	for _, b := range blocks {
		_, c := b.Dims()
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(b)
		offset += c
	}
	return out
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
