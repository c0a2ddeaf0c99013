// Package fileutil provides small filesystem helpers shared by the
// pipeline stages.
package fileutil

import (
	"errors"
	"os"
	"time"
)

// ExistsMaybeCompressed reports whether path exists either as-is or with
// a ".gz" suffix. Pairwise result artifacts are accepted in both forms.
func ExistsMaybeCompressed(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	_, err := os.Stat(path + ".gz")
	return err == nil
}

// RemoveTree deletes a directory tree, retrying once after a short pause.
// Search engines occasionally hold scratch files open a moment past
// process exit, particularly on NFS.
func RemoveTree(dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(dir); err == nil {
		return nil
	}
	time.Sleep(time.Second)
	return os.RemoveAll(dir)
}
