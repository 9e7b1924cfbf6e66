package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/core/model"
	"github.com/YuminosukeSato/adpipe/dataset"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/YuminosukeSato/adpipe/preprocessing"
)

// Preprocessor turns the raw snapshot into a scaled train/test split.
type Preprocessor struct {
	store    *artifact.Store
	schema   Schema
	testSize float64
	seed     int64
	logger   log.Logger
}

// NewPreprocessor creates a Preprocessor. testSize is the test fraction and
// seed drives the split permutation.
func NewPreprocessor(store *artifact.Store, schema Schema, testSize float64, seed int64, logger log.Logger) *Preprocessor {
	return &Preprocessor{
		store:    store,
		schema:   schema,
		testSize: testSize,
		seed:     seed,
		logger:   stageLogger(logger, "preprocess"),
	}
}

// NewScalers returns the transformer applied to the features: every numeric
// column min-max scaled, then every numeric column standardized, then the
// remaining columns unchanged.
func NewScalers(numeric []string) *preprocessing.ColumnTransformer {
	return preprocessing.NewColumnTransformer(preprocessing.RemainderPassthrough,
		model.NamedTransformer{Name: "minmax", Transformer: preprocessing.NewMinMaxScalerDefault(), Columns: numeric},
		model.NamedTransformer{Name: "standard", Transformer: preprocessing.NewStandardScalerDefault(), Columns: numeric},
	)
}

// Process reads raw, validates the schema, splits and scales, and returns the
// handle of preprocessed.gob.
func (p *Preprocessor) Process(ctx context.Context, raw artifact.Handle) (h artifact.Handle, err error) {
	const op = "Preprocessor.Process"
	defer errors.Recover(&err, op)
	start := time.Now()
	defer func() { observe("preprocess", time.Since(start).Seconds(), err) }()

	var frame dataset.Frame
	if err := p.store.Load(ctx, raw, &frame); err != nil {
		return "", errors.NewDataNotFoundError(raw.Path(), "load raw snapshot", err)
	}
	if err := p.schema.Check(op, &frame); err != nil {
		p.logger.Error("Schema check failed", err)
		return "", err
	}

	labels, err := frame.Column(p.schema.Label)
	if err != nil {
		return "", err
	}
	y, err := preprocessing.EncodeBinaryLabels(p.schema.Label, labels)
	if err != nil {
		return "", err
	}
	X := frame.Drop(p.schema.dropList()...)

	split, err := preprocessing.TrainTestSplit(X, y, p.testSize, p.seed)
	if err != nil {
		return "", err
	}
	ts, err := preprocessing.NewTransformedSplit(NewScalers(p.schema.Numeric), split)
	if err != nil {
		var schemaErr *errors.SchemaMismatchError
		if errors.As(err, &schemaErr) {
			return "", err
		}
		return "", errors.Wrap(err, "scale features")
	}

	h = p.store.Working(artifact.PreprocessedName)
	if err := p.store.Save(ctx, h, ts); err != nil {
		return "", errors.Wrap(err, "save preprocessed split")
	}
	p.logger.Info("Data preprocessed",
		log.TrainSamplesKey, len(ts.XTrain),
		log.TestSamplesKey, len(ts.XTest),
		log.FeaturesKey, ts.NFeatures(),
		log.RandomSeedKey, p.seed,
		log.ArtifactPathKey, h.Path(),
	)
	return h, nil
}
