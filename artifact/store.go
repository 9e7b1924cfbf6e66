// Package artifact persists the values handed between pipeline stages.
//
// Every artifact is gob-encoded and written atomically: the bytes go to a
// temporary file in the target directory which is then renamed over the final
// path, so readers never observe a partially written artifact. A BLAKE2b-256
// digest sidecar (<artifact>.b2) is verified on every read. Save removes the
// previous sidecar before the artifact is replaced and writes the new one
// after, so an interrupted Save never pairs new bytes with an old digest.
package artifact

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/adpipe/core/model"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// Handle は永続化済みアーティファクトのファイルパス
type Handle string

// Path returns the filesystem path of the artifact.
func (h Handle) Path() string { return string(h) }

func (h Handle) String() string { return string(h) }

const (
	// RawName is the Loader's snapshot of the CSV.
	RawName = "raw.gob"
	// PreprocessedName is the Preprocessor's transformed split.
	PreprocessedName = "preprocessed.gob"
	// DefaultModelID is the Trainer's default model identifier.
	DefaultModelID = "model.sav"

	fileMode = 0o644
	dirMode  = 0o755
)

var (
	// ErrNotFound is returned when the artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrDigestMismatch is returned when the artifact bytes do not match the sidecar digest.
	ErrDigestMismatch = errors.New("artifact digest mismatch")
)

// Store resolves artifact paths under a working directory (intermediate data)
// and a model directory (trained models).
type Store struct {
	workingDir string
	modelDir   string
}

// NewStore creates both directories if needed.
func NewStore(workingDir, modelDir string) (*Store, error) {
	for _, dir := range []string{workingDir, modelDir} {
		if dir == "" {
			return nil, errors.NewValidationError("dir", "artifact directory must not be empty", dir)
		}
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, errors.Wrapf(err, "create artifact dir %s", dir)
		}
	}
	return &Store{workingDir: workingDir, modelDir: modelDir}, nil
}

// WorkingDir returns the intermediate artifact directory.
func (s *Store) WorkingDir() string { return s.workingDir }

// ModelDir returns the model directory.
func (s *Store) ModelDir() string { return s.modelDir }

// Working returns the handle of an intermediate artifact.
func (s *Store) Working(name string) Handle {
	return Handle(filepath.Join(s.workingDir, name))
}

// Model returns the handle of a model artifact.
func (s *Store) Model(id string) Handle {
	return Handle(filepath.Join(s.modelDir, id))
}

// Save gob-encodes v and atomically replaces h with it, then writes the digest sidecar.
func (s *Store) Save(ctx context.Context, h Handle, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := model.SaveModelToWriter(v, &buf); err != nil {
		return errors.Wrapf(err, "encode artifact %s", h)
	}
	// 古いサイドカーを先に消す。途中で止まってもサイドカー無しとして読める
	if err := removeIfExists(digestPath(h.Path())); err != nil {
		return errors.Wrapf(err, "remove stale digest for %s", h)
	}
	if err := writeFile(h.Path(), buf.Bytes(), fileMode); err != nil {
		return errors.Wrapf(err, "write artifact %s", h)
	}
	if err := writeSidecar(digestPath(h.Path()), []byte(Digest(buf.Bytes())+"\n"), fileMode); err != nil {
		return errors.Wrapf(err, "write digest for %s", h)
	}
	return nil
}

// Load reads h, verifies the digest sidecar when present and gob-decodes into v.
func (s *Store) Load(ctx context.Context, h Handle, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := os.ReadFile(h.Path())
	if errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(ErrNotFound, "%s", h)
	}
	if err != nil {
		return errors.Wrapf(err, "read artifact %s", h)
	}
	if err := verifyDigest(h.Path(), b); err != nil {
		return err
	}
	if err := model.LoadModelFromReader(v, bytes.NewReader(b)); err != nil {
		return errors.Wrapf(err, "decode artifact %s", h)
	}
	return nil
}

// Exists reports whether the artifact file exists.
func (s *Store) Exists(h Handle) bool {
	_, err := os.Stat(h.Path())
	return err == nil
}

// Remove deletes the artifact and its digest sidecar. Missing files are ignored.
func (s *Store) Remove(h Handle) error {
	for _, p := range []string{digestPath(h.Path()), h.Path()} {
		if err := removeIfExists(p); err != nil {
			return errors.Wrapf(err, "remove %s", p)
		}
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// writeSidecar is swapped in tests to interrupt Save between the two renames.
var writeSidecar = writeFile

// writeFile writes bytes via a temp file in the same directory, then
// atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// rename 成功後は存在しないので無視される
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
