package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionHistogramWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "decision.png")
	scores := []float64{-1.8, -1.2, -0.9, -0.4, 0.3, 0.8, 1.1, 1.9}
	labels := []float64{0, 0, 0, 0, 1, 1, 1, 1}

	require.NoError(t, DecisionHistogram(path, scores, labels, 0))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}

func TestDecisionHistogramSingleClass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.png")
	require.NoError(t, DecisionHistogram(path, []float64{0.1, 0.5, 0.9}, []float64{1, 1, 1}, 5))
	assert.FileExists(t, path)
}

func TestDecisionHistogramErrors(t *testing.T) {
	dir := t.TempDir()

	var dimErr *errors.DimensionError
	err := DecisionHistogram(filepath.Join(dir, "a.png"), []float64{1}, nil, 5)
	assert.True(t, errors.As(err, &dimErr))

	assert.Error(t, DecisionHistogram(filepath.Join(dir, "b.png"), nil, nil, 5))
	assert.Error(t, DecisionHistogram(filepath.Join(dir, "c.png"), []float64{1}, []float64{7}, 5))
}
