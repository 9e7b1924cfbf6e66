package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/metrics"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/YuminosukeSato/adpipe/preprocessing"
	"github.com/YuminosukeSato/adpipe/report"
	"github.com/YuminosukeSato/adpipe/sklearn/svm"
	"gonum.org/v1/gonum/mat"
)

// Evaluation is the outcome of scoring a model on the test split.
type Evaluation struct {
	ModelPath       string
	Accuracy        float64
	FirstPrediction int
	TestSamples     int
	AUC             float64
	Confusion       metrics.ConfusionMatrix
}

// Evaluator scores a saved model on the test side of the split.
type Evaluator struct {
	store      *artifact.Store
	reportPath string
	logger     log.Logger
}

// NewEvaluator creates an Evaluator. A non-empty reportPath also renders a
// decision-function histogram there.
func NewEvaluator(store *artifact.Store, reportPath string, logger log.Logger) *Evaluator {
	return &Evaluator{store: store, reportPath: reportPath, logger: stageLogger(logger, "evaluate")}
}

// Evaluate loads split and model modelID and returns test-set metrics.
// A model that is missing, corrupt or built for a different feature count
// gives a ModelLoadError.
func (e *Evaluator) Evaluate(ctx context.Context, split artifact.Handle, modelID string) (ev *Evaluation, err error) {
	defer errors.Recover(&err, "Evaluator.Evaluate")
	start := time.Now()
	defer func() { observe("evaluate", time.Since(start).Seconds(), err) }()

	if modelID == "" {
		modelID = artifact.DefaultModelID
	}
	var ts preprocessing.TransformedSplit
	if err := e.store.Load(ctx, split, &ts); err != nil {
		return nil, errors.NewDataNotFoundError(split.Path(), "load preprocessed split", err)
	}
	_, _, XTest, _, err := ts.Matrices()
	if err != nil {
		return nil, err
	}

	mh := e.store.Model(modelID)
	clf, err := e.loadModel(ctx, mh)
	if err != nil {
		e.logger.Error("Model load failed", err, log.ArtifactPathKey, mh.Path())
		return nil, err
	}

	scores, err := clf.DecisionFunction(XTest)
	if err != nil {
		var dimErr *errors.DimensionError
		if errors.As(err, &dimErr) {
			return nil, errors.NewModelLoadError(mh.Path(), "feature dimension mismatch", err)
		}
		return nil, err
	}
	pred, err := clf.Predict(XTest)
	if err != nil {
		return nil, err
	}

	yTrue := mat.NewVecDense(len(ts.YTest), append([]float64(nil), ts.YTest...))
	yPred := mat.NewVecDense(len(scores), mat.Col(nil, 0, pred))
	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	auc, err := metrics.AUC(yTrue, mat.NewVecDense(len(scores), scores))
	if err != nil {
		return nil, err
	}
	classes := clf.Classes()
	confusion, err := metrics.BinaryConfusion(yTrue, yPred, classes[len(classes)-1])
	if err != nil {
		return nil, err
	}

	ev = &Evaluation{
		ModelPath:       mh.Path(),
		Accuracy:        acc,
		FirstPrediction: int(yPred.AtVec(0)),
		TestSamples:     yTrue.Len(),
		AUC:             auc,
		Confusion:       confusion,
	}
	ModelAccuracy.WithLabelValues(modelID).Set(acc)
	ModelAUC.WithLabelValues(modelID).Set(auc)

	e.logger.Info(fmt.Sprintf("Model score on test data: %.4f", acc),
		log.AccuracyKey, acc,
		log.PredictionKey, ev.FirstPrediction,
		log.PredsKey, ev.TestSamples,
		"auc", auc,
		"precision", confusion.Precision(),
		"recall", confusion.Recall(),
	)

	if e.reportPath != "" {
		if err := report.DecisionHistogram(e.reportPath, scores, ts.YTest, report.DefaultBins); err != nil {
			return nil, err
		}
		e.logger.Info("Report written", log.ArtifactPathKey, e.reportPath)
	}
	return ev, nil
}

func (e *Evaluator) loadModel(ctx context.Context, h artifact.Handle) (*svm.SVC, error) {
	var clf svm.SVC
	if err := e.store.Load(ctx, h, &clf); err != nil {
		switch {
		case errors.Is(err, artifact.ErrNotFound):
			return nil, errors.NewModelLoadError(h.Path(), "artifact missing", err)
		case errors.Is(err, artifact.ErrDigestMismatch):
			return nil, errors.NewModelLoadError(h.Path(), "digest mismatch", err)
		case ctx.Err() != nil:
			return nil, err
		default:
			return nil, errors.NewModelLoadError(h.Path(), "decode failed", err)
		}
	}
	if clf.State == nil || !clf.State.IsFitted() || len(clf.ClassLabels) != 2 {
		return nil, errors.NewModelLoadError(h.Path(), "artifact is not a fitted binary SVC", nil)
	}
	return &clf, nil
}
