package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/dataset"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
)

// Loader reads the source CSV and snapshots it as raw.gob.
type Loader struct {
	store  *artifact.Store
	logger log.Logger
}

// NewLoader creates a Loader writing into store's working directory.
func NewLoader(store *artifact.Store, logger log.Logger) *Loader {
	return &Loader{store: store, logger: stageLogger(logger, "load")}
}

// Load reads source and returns the handle of the raw snapshot. Only the CSV
// structure is checked here; column presence is the Preprocessor's job.
func (l *Loader) Load(ctx context.Context, source string) (h artifact.Handle, err error) {
	defer errors.Recover(&err, "Loader.Load")
	start := time.Now()
	defer func() { observe("load", time.Since(start).Seconds(), err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	frame, err := dataset.ReadCSVFile(source)
	if err != nil {
		l.logger.Error("Failed to read source", err, "source", source)
		return "", err
	}

	h = l.store.Working(artifact.RawName)
	if err := l.store.Save(ctx, h, frame); err != nil {
		return "", errors.Wrap(err, "save raw snapshot")
	}
	l.logger.Info("Raw data loaded",
		"source", source,
		log.SamplesKey, frame.Len(),
		log.FeaturesKey, frame.Width(),
		log.ArtifactPathKey, h.Path(),
	)
	return h, nil
}

func stageLogger(logger log.Logger, stage string) log.Logger {
	if logger == nil {
		logger = log.NewSlogLogger(nil)
	}
	return logger.With(log.StageKey, stage)
}
