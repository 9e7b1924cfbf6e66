package pipeline

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/config"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/stretchr/testify/require"
)

var advertisingHeader = []string{
	"Daily Time Spent on Site", "Age", "Area Income", "Daily Internet Usage",
	"Ad Topic Line", "City", "Male", "Country", "Timestamp", "Clicked on Ad",
}

// documentedHeader は Male が2回現れるヘッダー
var documentedHeader = []string{
	"Daily Time Spent on Site", "Age", "Area Income", "Daily Internet Usage", "Male",
	"Ad Topic Line", "City", "Male", "Country", "Timestamp", "Clicked on Ad",
}

type csvOptions struct {
	drop          string // column left out of the file
	boolLabel     bool
	duplicateMale bool // write documentedHeader instead of advertisingHeader
}

// writeAdvertisingCSV は広告データと同じスキーマの合成データを書き出す
func writeAdvertisingCSV(t *testing.T, dir string, n int, opts csvOptions) string {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

	full := advertisingHeader
	if opts.duplicateMale {
		full = documentedHeader
	}
	header := make([]string, 0, len(full))
	keep := make([]int, 0, len(full))
	for i, h := range full {
		if h != opts.drop {
			header = append(header, h)
			keep = append(keep, i)
		}
	}

	path := filepath.Join(dir, "advertising.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(header))
	for i := 0; i < n; i++ {
		clicked := rng.Intn(2)
		timeSpent := 70 + rng.NormFloat64()*8
		usage := 210 + rng.NormFloat64()*25
		age := 31 + rng.NormFloat64()*6
		income := 60000 + rng.NormFloat64()*9000
		if clicked == 1 {
			timeSpent -= 20
			usage -= 70
			age += 9
			income -= 15000
		}
		label := fmt.Sprint(clicked)
		if opts.boolLabel {
			label = fmt.Sprint(clicked == 1)
		}
		row := []string{
			fmt.Sprintf("%.2f", timeSpent),
			fmt.Sprintf("%.0f", age),
			fmt.Sprintf("%.2f", income),
			fmt.Sprintf("%.2f", usage),
			fmt.Sprintf("Synergized, intuitive topic %d", i),
			fmt.Sprintf("City %d", rng.Intn(50)),
			fmt.Sprint(rng.Intn(2)),
			fmt.Sprintf("Country %d", rng.Intn(20)),
			base.Add(time.Duration(i) * time.Hour).Format("2006-01-02 15:04:05"),
			label,
		}
		if opts.duplicateMale {
			row = append(row[:4], append([]string{fmt.Sprint(rng.Intn(2))}, row[4:]...)...)
		}
		out := make([]string, 0, len(keep))
		for _, k := range keep {
			out = append(out, row[k])
		}
		require.NoError(t, w.Write(out))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

type fixture struct {
	cfg    *config.Config
	store  *artifact.Store
	stages *Stages
	logger *log.TestLogger
}

func newFixture(t *testing.T, n int, opts csvOptions) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Data.Source = writeAdvertisingCSV(t, dir, n, opts)
	cfg.Data.WorkingDir = filepath.Join(dir, "working_data")
	cfg.Data.ModelDir = filepath.Join(dir, "model")
	cfg.DAG.Retries = 0
	cfg.DAG.RetryDelay = 0

	store, err := artifact.NewStore(cfg.Data.WorkingDir, cfg.Data.ModelDir)
	require.NoError(t, err)

	logger, _ := log.NewTestLogger(log.LevelDebug)
	stages, err := NewStages(cfg, store, logger)
	require.NoError(t, err)
	return &fixture{cfg: cfg, store: store, stages: stages, logger: logger}
}
