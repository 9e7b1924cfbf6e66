package model

import (
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// SaveModelToWriter はモデルをgobでio.Writerに書き出す
//
// パラメータ:
//   - model: 保存する値（公開フィールドのみがエンコードされる）
//   - w: 保存先のWriter
//
// 戻り値:
//   - error: エンコードに失敗した場合のエラー
//
// 使用例:
//
//	var buf bytes.Buffer
//	err := model.SaveModelToWriter(svc, &buf)
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからgobでモデルを読み込む
//
// パラメータ:
//   - model: 読み込み先（ポインタ）
//   - r: 読み込み元のReader
//
// 戻り値:
//   - error: デコードに失敗した場合のエラー
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
