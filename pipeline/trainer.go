package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/config"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/YuminosukeSato/adpipe/preprocessing"
	"github.com/YuminosukeSato/adpipe/sklearn/svm"
)

// ModelOptions converts the model configuration into SVC options. Gamma may
// be "scale", "auto" or a positive number.
func ModelOptions(cfg config.ModelConfig) ([]svm.Option, error) {
	opts := []svm.Option{
		svm.WithC(cfg.C),
		svm.WithKernel(cfg.Kernel),
		svm.WithTol(cfg.Tol),
		svm.WithMaxIter(cfg.MaxIter),
		svm.WithRandomState(cfg.RandomState),
	}
	switch cfg.Gamma {
	case "", svm.GammaScale:
		opts = append(opts, svm.WithGamma(svm.GammaScale))
	case svm.GammaAuto:
		opts = append(opts, svm.WithGamma(svm.GammaAuto))
	default:
		g, err := strconv.ParseFloat(cfg.Gamma, 64)
		if err != nil || !(g > 0) {
			return nil, errors.NewValidationError("model.gamma", "must be scale, auto or a positive number", cfg.Gamma)
		}
		opts = append(opts, svm.WithGammaValue(g))
	}
	return opts, nil
}

// Trainer fits the SVC on the training side of the split.
type Trainer struct {
	store  *artifact.Store
	opts   []svm.Option
	logger log.Logger
}

// NewTrainer creates a Trainer that builds every model with opts.
func NewTrainer(store *artifact.Store, opts []svm.Option, logger log.Logger) *Trainer {
	return &Trainer{store: store, opts: opts, logger: stageLogger(logger, "train")}
}

// Train fits a model on split and saves it as modelID in the model directory.
func (t *Trainer) Train(ctx context.Context, split artifact.Handle, modelID string) (h artifact.Handle, err error) {
	defer errors.Recover(&err, "Trainer.Train")
	start := time.Now()
	defer func() { observe("train", time.Since(start).Seconds(), err) }()

	if modelID == "" {
		modelID = artifact.DefaultModelID
	}
	var ts preprocessing.TransformedSplit
	if err := t.store.Load(ctx, split, &ts); err != nil {
		return "", errors.NewDataNotFoundError(split.Path(), "load preprocessed split", err)
	}
	XTrain, yTrain, _, _, err := ts.Matrices()
	if err != nil {
		return "", err
	}

	clf := svm.NewSVC(t.opts...)
	if err := clf.Fit(XTrain, yTrain); err != nil {
		return "", errors.Wrap(err, "fit SVC")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h = t.store.Model(modelID)
	if err := t.store.Save(ctx, h, clf); err != nil {
		return "", errors.Wrap(err, "save model")
	}
	SupportVectors.WithLabelValues(modelID).Set(float64(clf.NSupport()))
	t.logger.Info("Model saved",
		log.ModelNameKey, "SVC",
		log.ArtifactPathKey, h.Path(),
		log.TrainSamplesKey, len(ts.XTrain),
		log.SupportVectorsKey, clf.NSupport(),
		log.IterationKey, clf.NIter,
		log.HyperParamsKey, clf.GetParams(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return h, nil
}
