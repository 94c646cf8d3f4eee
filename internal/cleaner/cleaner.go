// Package cleaner implements the final stage: it clears every entry directly
// inside the intermediate directory once the downstream stages have finished
// with the files, leaving the directory itself in place.
//
// This is the only stage with a continue-on-error policy: a single entry that
// cannot be removed is logged and skipped so the rest of the cleanup still
// happens. Every other stage in the pipeline is fail-fast.
package cleaner

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Run removes all entries inside dir. Files and symbolic links are removed
// directly, subdirectories recursively. A missing dir is a no-op. The return
// value counts the entries removed; err is non-nil only when the directory
// itself cannot be listed.
func Run(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("cleaner: directory %s does not exist", dir)
			return 0, nil
		}
		return 0, fmt.Errorf("cleaner: read %s: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		var rmErr error
		if entry.IsDir() {
			rmErr = os.RemoveAll(path)
		} else {
			// Covers regular files and symlinks; Remove never follows links.
			rmErr = os.Remove(path)
		}
		if rmErr != nil {
			log.Printf("cleaner: failed to delete %s: %v", path, rmErr)
			continue
		}
		log.Printf("cleaner: removed %s", path)
		removed++
	}

	log.Printf("cleaner: cleanup complete dir=%s removed=%d", dir, removed)
	return removed, nil
}
