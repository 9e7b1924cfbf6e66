package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/config"
	"github.com/YuminosukeSato/adpipe/dataset"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/YuminosukeSato/adpipe/preprocessing"
	"github.com/YuminosukeSato/adpipe/sklearn/svm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// runChain runs Loader through Evaluator and returns the split handle and evaluation.
func runChain(t *testing.T, fx *fixture) (artifact.Handle, *Evaluation) {
	t.Helper()
	ctx := context.Background()

	raw, err := fx.stages.Loader.Load(ctx, fx.cfg.Data.Source)
	require.NoError(t, err)
	pre, err := fx.stages.Preprocessor.Process(ctx, raw)
	require.NoError(t, err)
	split, err := fx.stages.Splitter.Separate(ctx, pre)
	require.NoError(t, err)
	assert.Equal(t, pre, split)

	_, err = fx.stages.Trainer.Train(ctx, split, fx.cfg.Data.ModelID)
	require.NoError(t, err)
	ev, err := fx.stages.Evaluator.Evaluate(ctx, split, fx.cfg.Data.ModelID)
	require.NoError(t, err)
	return split, ev
}

func TestPipelineEndToEnd(t *testing.T) {
	fx := newFixture(t, 1000, csvOptions{})
	fx.cfg.Data.ReportPath = filepath.Join(filepath.Dir(fx.cfg.Data.Source), "report", "decision.png")
	fx.stages.Evaluator = NewEvaluator(fx.store, fx.cfg.Data.ReportPath, fx.logger)

	split, ev := runChain(t, fx)

	assert.FileExists(t, filepath.Join(fx.cfg.Data.ModelDir, "model.sav"))
	assert.FileExists(t, filepath.Join(fx.cfg.Data.WorkingDir, "raw.gob"))
	assert.FileExists(t, fx.cfg.Data.ReportPath)

	assert.GreaterOrEqual(t, ev.Accuracy, 0.0)
	assert.LessOrEqual(t, ev.Accuracy, 1.0)
	assert.Greater(t, ev.Accuracy, 0.8)
	assert.Contains(t, []int{0, 1}, ev.FirstPrediction)
	assert.Equal(t, 300, ev.TestSamples)
	assert.Equal(t, ev.TestSamples, ev.Confusion.TP+ev.Confusion.FP+ev.Confusion.TN+ev.Confusion.FN)

	var ts preprocessing.TransformedSplit
	require.NoError(t, fx.store.Load(context.Background(), split, &ts))
	assert.Len(t, ts.XTest, int(math.Ceil(0.3*1000)))
	assert.Len(t, ts.XTrain, 700)
	assert.Equal(t, 2*len(fx.cfg.Preprocess.Numeric), ts.NFeatures())
	assert.Equal(t, "minmax__Daily Time Spent on Site", ts.FeatureNames[0])
	assert.Equal(t, "standard__Male", ts.FeatureNames[9])

	assert.True(t, fx.logger.ContainsMessage("Model score on test data"))
	assert.True(t, fx.logger.ContainsField(log.StageKey, "train"))
}

func TestPipelineAcceptsRepeatedMaleColumn(t *testing.T) {
	fx := newFixture(t, 200, csvOptions{duplicateMale: true})
	split, ev := runChain(t, fx)

	var raw dataset.Frame
	require.NoError(t, fx.store.Load(context.Background(), fx.store.Working(artifact.RawName), &raw))
	assert.Equal(t, 11, raw.Width())
	assert.Equal(t, 7, raw.Index("Male.1"))

	var ts preprocessing.TransformedSplit
	require.NoError(t, fx.store.Load(context.Background(), split, &ts))
	assert.Equal(t, 2*5+1, ts.NFeatures())
	assert.Equal(t, "remainder__Male.1", ts.FeatureNames[10])
	assert.Equal(t, 60, ev.TestSamples)
}

func TestPipelineDeterministic(t *testing.T) {
	_, first := runChain(t, newFixture(t, 300, csvOptions{}))
	_, second := runChain(t, newFixture(t, 300, csvOptions{}))

	assert.Equal(t, first.Accuracy, second.Accuracy)
	assert.Equal(t, first.FirstPrediction, second.FirstPrediction)
	assert.Equal(t, first.Confusion, second.Confusion)
}

func TestRetrainGivesIdenticalPredictions(t *testing.T) {
	fx := newFixture(t, 300, csvOptions{})
	split, _ := runChain(t, fx)
	ctx := context.Background()

	loadModel := func() *svm.SVC {
		var clf svm.SVC
		require.NoError(t, fx.store.Load(ctx, fx.store.Model(fx.cfg.Data.ModelID), &clf))
		return &clf
	}
	first := loadModel()

	_, err := fx.stages.Trainer.Train(ctx, split, fx.cfg.Data.ModelID)
	require.NoError(t, err)
	second := loadModel()

	assert.Equal(t, first.DualCoef, second.DualCoef)
	assert.Equal(t, first.Intercept, second.Intercept)

	sample := mat.NewDense(3, 10, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 10; j++ {
			sample.Set(i, j, float64(i-1)*0.5+float64(j)*0.01)
		}
	}
	p1, err := first.Predict(sample)
	require.NoError(t, err)
	p2, err := second.Predict(sample)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))
}

func TestPreprocessorMissingAge(t *testing.T) {
	fx := newFixture(t, 50, csvOptions{drop: "Age"})
	ctx := context.Background()

	raw, err := fx.stages.Loader.Load(ctx, fx.cfg.Data.Source)
	require.NoError(t, err, "the loader checks structure only")

	_, err = fx.stages.Preprocessor.Process(ctx, raw)
	var schemaErr *errors.SchemaMismatchError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, []string{"Age"}, schemaErr.Missing)
}

func TestPreprocessorNonNumericFeature(t *testing.T) {
	fx := newFixture(t, 50, csvOptions{})
	// Ad Topic Line stays in the passthrough remainder
	fx.stages.Preprocessor.schema.Drop = []string{"Timestamp", "Clicked on Ad", "Country", "City"}
	ctx := context.Background()

	raw, err := fx.stages.Loader.Load(ctx, fx.cfg.Data.Source)
	require.NoError(t, err)
	_, err = fx.stages.Preprocessor.Process(ctx, raw)
	var schemaErr *errors.SchemaMismatchError
	assert.True(t, errors.As(err, &schemaErr), "got %v", err)
}

func TestPreprocessorBooleanLabels(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(nil)

	fx := newFixture(t, 60, csvOptions{boolLabel: true})
	ctx := context.Background()
	raw, err := fx.stages.Loader.Load(ctx, fx.cfg.Data.Source)
	require.NoError(t, err)
	_, err = fx.stages.Preprocessor.Process(ctx, raw)
	require.NoError(t, err)

	require.Len(t, warned, 1)
	var conv *errors.DataConversionWarning
	assert.True(t, errors.As(warned[0], &conv))
}

func TestLoaderMissingSource(t *testing.T) {
	fx := newFixture(t, 10, csvOptions{})

	_, err := fx.stages.Loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	var dnf *errors.DataNotFoundError
	assert.True(t, errors.As(err, &dnf), "got %v", err)
}

func TestEvaluatorModelLoadErrors(t *testing.T) {
	fx := newFixture(t, 200, csvOptions{})
	split, _ := runChain(t, fx)
	ctx := context.Background()
	modelPath := filepath.Join(fx.cfg.Data.ModelDir, fx.cfg.Data.ModelID)

	t.Run("corrupt", func(t *testing.T) {
		orig, err := os.ReadFile(modelPath)
		require.NoError(t, err)
		defer func() { require.NoError(t, os.WriteFile(modelPath, orig, 0o644)) }()

		require.NoError(t, os.WriteFile(modelPath, []byte("not a model"), 0o644))
		_, err = fx.stages.Evaluator.Evaluate(ctx, split, fx.cfg.Data.ModelID)
		var mle *errors.ModelLoadError
		require.True(t, errors.As(err, &mle), "got %v", err)
		assert.Equal(t, "digest mismatch", mle.Reason)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		X := mat.NewDense(4, 3, []float64{0, 0, 0, 0, 1, 0, 1, 0, 1, 1, 1, 1})
		y := mat.NewDense(4, 1, []float64{0, 1, 0, 1})
		clf := svm.NewSVC()
		require.NoError(t, clf.Fit(X, y))
		require.NoError(t, fx.store.Save(ctx, fx.store.Model("narrow.sav"), clf))

		_, err := fx.stages.Evaluator.Evaluate(ctx, split, "narrow.sav")
		var mle *errors.ModelLoadError
		require.True(t, errors.As(err, &mle), "got %v", err)
		assert.Equal(t, "feature dimension mismatch", mle.Reason)
	})

	t.Run("missing", func(t *testing.T) {
		require.NoError(t, fx.store.Remove(fx.store.Model(fx.cfg.Data.ModelID)))
		_, err := fx.stages.Evaluator.Evaluate(ctx, split, fx.cfg.Data.ModelID)
		var mle *errors.ModelLoadError
		require.True(t, errors.As(err, &mle), "got %v", err)
		assert.Equal(t, "artifact missing", mle.Reason)
	})
}

func TestModelOptions(t *testing.T) {
	base := config.Default().Model

	opts, err := ModelOptions(base)
	require.NoError(t, err)
	clf := svm.NewSVC(opts...)
	assert.Equal(t, svm.GammaScale, clf.GammaMode)
	assert.Equal(t, int64(42), clf.RandomState)

	base.Gamma = "0.25"
	opts, err = ModelOptions(base)
	require.NoError(t, err)
	assert.Equal(t, 0.25, svm.NewSVC(opts...).GammaValue)

	base.Gamma = "huge"
	_, err = ModelOptions(base)
	assert.Error(t, err)
}

func TestSchemaCheck(t *testing.T) {
	s := Schema{Label: "y", Numeric: []string{"a"}, Drop: []string{"a"}}
	assert.Contains(t, s.dropList(), "y")
	assert.Error(t, s.Check("op", mustFrame(t, []string{"a", "y"})))

	s = Schema{Label: "y", Numeric: []string{"a", "b"}, Drop: []string{"y"}}
	assert.Equal(t, []string{"y"}, s.dropList())
	assert.NoError(t, s.Check("op", mustFrame(t, []string{"a", "b", "y"})))
}

func mustFrame(t *testing.T, header []string) *dataset.Frame {
	t.Helper()
	f, err := dataset.NewFrame(header, nil)
	require.NoError(t, err)
	return f
}
