package preprocessing

import (
	"math"
	"sort"
	"strconv"
	"testing"

	"github.com/YuminosukeSato/adpipe/dataset"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexFrame(n int) (*dataset.Frame, []float64) {
	records := make([][]string, n)
	y := make([]float64, n)
	for i := range records {
		records[i] = []string{strconv.Itoa(i)}
		y[i] = float64(i % 2)
	}
	return &dataset.Frame{Header: []string{"id"}, Records: records}, y
}

func TestTrainTestSplitSizes(t *testing.T) {
	for _, n := range []int{2, 10, 11, 99, 1000} {
		X, y := indexFrame(n)
		s, err := TrainTestSplit(X, y, 0.3, 42)
		require.NoError(t, err)

		wantTest := int(math.Ceil(0.3 * float64(n)))
		assert.Equal(t, wantTest, s.XTest.Len(), "n=%d", n)
		assert.Equal(t, n-wantTest, s.XTrain.Len(), "n=%d", n)
		assert.Len(t, s.YTest, wantTest)
		assert.Len(t, s.YTrain, n-wantTest)
	}
}

func TestTrainTestSplitIsStablePartition(t *testing.T) {
	X, y := indexFrame(200)

	a, err := TrainTestSplit(X, y, 0.3, 42)
	require.NoError(t, err)
	b, err := TrainTestSplit(X, y, 0.3, 42)
	require.NoError(t, err)
	assert.Equal(t, a.TestIndex, b.TestIndex)
	assert.Equal(t, a.TrainIndex, b.TrainIndex)

	all := append(append([]int(nil), a.TestIndex...), a.TrainIndex...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}

	// 行とラベルの対応が保たれている
	for i, row := range a.XTest.Records {
		id, _ := strconv.Atoi(row[0])
		assert.Equal(t, y[id], a.YTest[i])
	}

	c, err := TrainTestSplit(X, y, 0.3, 7)
	require.NoError(t, err)
	assert.NotEqual(t, a.TestIndex, c.TestIndex)
}

func TestTrainTestSplitErrors(t *testing.T) {
	X, y := indexFrame(1)
	_, err := TrainTestSplit(X, y, 0.3, 42)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	X, y = indexFrame(10)
	_, err = TrainTestSplit(X, y, 1.5, 42)
	var val *errors.ValidationError
	assert.True(t, errors.As(err, &val))

	_, err = TrainTestSplit(X, y[:5], 0.3, 42)
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestEncodeBinaryLabels(t *testing.T) {
	got, err := EncodeBinaryLabels("Clicked on Ad", []string{"0", "1", " 1 "})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1}, got)

	var warned error
	errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(nil)

	got, err = EncodeBinaryLabels("Clicked on Ad", []string{"True", "false"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, got)
	var dcw *errors.DataConversionWarning
	assert.True(t, errors.As(warned, &dcw))

	_, err = EncodeBinaryLabels("Clicked on Ad", []string{"0", "2"})
	var sm *errors.SchemaMismatchError
	assert.True(t, errors.As(err, &sm))
}
