package pipeline

import (
	"context"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/pkg/log"
)

// Splitter hands the preprocessed split on unchanged. It exists so the DAG
// keeps a dedicated task between preprocessing and training.
type Splitter struct {
	logger log.Logger
}

// NewSplitter creates a Splitter.
func NewSplitter(logger log.Logger) *Splitter {
	return &Splitter{logger: stageLogger(logger, "separate")}
}

// Separate returns h.
func (s *Splitter) Separate(ctx context.Context, h artifact.Handle) (artifact.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.logger.Debug("Split passed through", log.ArtifactPathKey, h.Path())
	return h, nil
}
