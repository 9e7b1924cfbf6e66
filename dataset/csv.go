package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

const utf8BOM = "\uFEFF"

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataNotFoundError(path, "open source", err)
	}
	defer file.Close()

	return ReadCSV(bufio.NewReader(file), path)
}

// ReadCSV reads a header row followed by records. source only labels errors.
//
// Every failure is reported as a DataNotFoundError: an empty input, a header
// without records, or rows whose width differs from the header. Repeated
// header names are renamed to <name>.<k> (see DedupeHeader).
func ReadCSV(r io.Reader, source string) (*Frame, error) {
	reader := csv.NewReader(r)
	// FieldsPerRecord 0: 全行がヘッダーと同じ幅であることを強制する
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDataNotFoundError(source, "empty file", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.NewDataNotFoundError(source, "read header", err)
	}
	header = append([]string(nil), header...)
	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	header = DedupeHeader(header)

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDataNotFoundError(source, "read records", err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.NewDataNotFoundError(source, "no records after header", errors.ErrEmptyData)
	}

	frame, err := NewFrame(header, records)
	if err != nil {
		return nil, errors.NewDataNotFoundError(source, "invalid table", err)
	}
	return frame, nil
}

// DedupeHeader は重複した列名を pandas の read_csv と同じく <name>.<k> に改名する
//
// 最初の出現はそのまま残り、2回目以降は k=1,2,... の順に番号が付く。
// 改名後の名前が既存の列と衝突する場合は k を進める。
func DedupeHeader(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]struct{}, len(header))
	for _, h := range header {
		taken[h] = struct{}{}
	}
	counts := make(map[string]int, len(header))
	for i, h := range header {
		k, seen := counts[h]
		if !seen {
			counts[h] = 1
			out[i] = h
			continue
		}
		name := fmt.Sprintf("%s.%d", h, k)
		for {
			if _, clash := taken[name]; !clash {
				break
			}
			k++
			name = fmt.Sprintf("%s.%d", h, k)
		}
		counts[h] = k + 1
		taken[name] = struct{}{}
		out[i] = name
	}
	return out
}

// WriteCSV writes the frame back out with its header row.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	if err := cw.WriteAll(f.Records); err != nil {
		return errors.Wrap(err, "write records")
	}
	return nil
}
