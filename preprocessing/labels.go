package preprocessing

import (
	"strconv"
	"strings"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// EncodeBinaryLabels は列 column の値を 0/1 に変換する
//
// 数値の 0/1 に加え true/false を受け付ける。真偽値が含まれていた場合は
// DataConversionWarning を一度だけ発行する。それ以外の値は SchemaMismatchError。
func EncodeBinaryLabels(column string, values []string) ([]float64, error) {
	out := make([]float64, len(values))
	sawBool := false
	for i, raw := range values {
		v := strings.TrimSpace(raw)
		switch strings.ToLower(v) {
		case "true":
			out[i] = 1
			sawBool = true
			continue
		case "false":
			out[i] = 0
			sawBool = true
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || (f != 0 && f != 1) {
			return nil, errors.NewSchemaMismatchErrorf("EncodeBinaryLabels",
				"label column %q row %d: %q is not a binary label", column, i, raw)
		}
		out[i] = f
	}
	if sawBool {
		errors.Warn(errors.NewDataConversionWarning("bool", "float64", "label column "+strconv.Quote(column)))
	}
	return out, nil
}
