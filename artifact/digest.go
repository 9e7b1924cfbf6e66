package artifact

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const digestExt = ".b2"

// Digest returns the hex BLAKE2b-256 digest of b.
func Digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func digestPath(path string) string {
	return path + digestExt
}

// verifyDigest compares b with the sidecar of path. A missing sidecar is not
// an error so artifacts copied in by hand stay readable.
func verifyDigest(path string, b []byte) error {
	want, err := os.ReadFile(digestPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read digest for %s", path)
	}
	if got := Digest(b); got != strings.TrimSpace(string(want)) {
		return errors.Wrapf(ErrDigestMismatch, "%s: want %s, got %s", path, strings.TrimSpace(string(want)), got)
	}
	return nil
}
