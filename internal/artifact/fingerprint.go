// Package artifact provides content fingerprints for intermediate pipeline
// files. Each stage logs the xxh3 hash of the artifact it produced so that
// reruns and cross-stage handoffs can be compared from logs alone (the files
// themselves are deleted by the cleanup stage).
package artifact

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// Fingerprint returns the 64-bit xxh3 hash of the file's contents.
func Fingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return h.Sum64(), nil
}

// String formats a fingerprint the way stage logs print it.
func String(sum uint64) string {
	return fmt.Sprintf("xxh3:%016x", sum)
}
