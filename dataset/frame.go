// Package dataset holds the raw tabular snapshot handed from the Loader to the
// Preprocessor.
//
// A Frame keeps every cell as the string read from the source. Numeric parsing
// happens only for the columns a transformer asks for, so text columns such as
// "Ad Topic Line" survive untouched until they are dropped.
package dataset

import (
	"strconv"
	"strings"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Frame は名前付き列を持つ文字列テーブル
//
// 不変条件: Header の列名は一意で、全ての Records 行は Header と同じ幅を持つ。
type Frame struct {
	Header  []string
	Records [][]string
}

// NewFrame は不変条件を検証してFrameを作成する
//
// パラメータ:
//   - header: 列名
//   - records: 行データ（各行はheaderと同じ幅）
//
// 戻り値:
//   - *Frame: 作成されたFrame
//   - error: 列名の重複、空の列名、幅の不一致
func NewFrame(header []string, records [][]string) (*Frame, error) {
	seen := make(map[string]struct{}, len(header))
	for _, name := range header {
		if name == "" {
			return nil, errors.NewValueError("dataset.NewFrame", "empty column name in header")
		}
		if _, dup := seen[name]; dup {
			return nil, errors.NewValueError("dataset.NewFrame", "duplicate column "+strconv.Quote(name))
		}
		seen[name] = struct{}{}
	}
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, errors.NewDimensionError("dataset.NewFrame row "+strconv.Itoa(i), len(header), len(rec), 1)
		}
	}
	return &Frame{Header: header, Records: records}, nil
}

// Len は行数を返す
func (f *Frame) Len() int { return len(f.Records) }

// Width は列数を返す
func (f *Frame) Width() int { return len(f.Header) }

// Index は列名の位置を返す。存在しない場合は-1
func (f *Frame) Index(name string) int {
	for i, h := range f.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Missing は names のうちFrameに存在しない列名を順序を保って返す
func (f *Frame) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if f.Index(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// Column は列の値をコピーして返す
func (f *Frame) Column(name string) ([]string, error) {
	idx := f.Index(name)
	if idx < 0 {
		return nil, errors.NewSchemaMismatchError("Frame.Column", []string{name})
	}
	out := make([]string, len(f.Records))
	for i, rec := range f.Records {
		out[i] = rec[idx]
	}
	return out, nil
}

// Drop は指定列を除いた新しいFrameを返す。存在しない列は無視する
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	keep := make([]int, 0, len(f.Header))
	for i, h := range f.Header {
		if _, ok := drop[h]; !ok {
			keep = append(keep, i)
		}
	}
	return f.project(keep)
}

// Select は指定列のみを指定順で持つ新しいFrameを返す
func (f *Frame) Select(names ...string) (*Frame, error) {
	if missing := f.Missing(names...); len(missing) > 0 {
		return nil, errors.NewSchemaMismatchError("Frame.Select", missing)
	}
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i] = f.Index(name)
	}
	return f.project(idx), nil
}

func (f *Frame) project(cols []int) *Frame {
	header := make([]string, len(cols))
	for j, c := range cols {
		header[j] = f.Header[c]
	}
	records := make([][]string, len(f.Records))
	for i, rec := range f.Records {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = rec[c]
		}
		records[i] = row
	}
	return &Frame{Header: header, Records: records}
}

// Take は rows で指定した行だけを指定順で持つ新しいFrameを返す
func (f *Frame) Take(rows []int) *Frame {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = append([]string(nil), f.Records[r]...)
	}
	return &Frame{Header: append([]string(nil), f.Header...), Records: records}
}

// Dense は指定列を float64 として解釈した (Len × len(cols)) 行列を返す
//
// 数値として解釈できないセルは SchemaMismatchError になる。
// "true"/"false" は 1/0 として扱う。
func (f *Frame) Dense(cols []string) (*mat.Dense, error) {
	if missing := f.Missing(cols...); len(missing) > 0 {
		return nil, errors.NewSchemaMismatchError("Frame.Dense", missing)
	}
	if f.Len() == 0 || len(cols) == 0 {
		return nil, errors.NewModelError("Frame.Dense", "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(f.Len(), len(cols), nil)
	for j, name := range cols {
		c := f.Index(name)
		for i, rec := range f.Records {
			v, err := ParseNumber(rec[c])
			if err != nil {
				return nil, errors.NewSchemaMismatchErrorf("Frame.Dense",
					"column %q row %d: %q is not numeric", name, i, rec[c])
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// ParseNumber parses a numeric cell. Booleans map to 1 and 0.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
