package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"normalizer/internal/logging"
	"normalizer/internal/services"
)

// EnsureNonEmpty fails unless path is a regular file with at least one byte.
func EnsureNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrValidation, "fileutil", "check", fmt.Sprintf("%s not found", path), err)
		}
		return services.Wrap(services.ErrValidation, "fileutil", "check", path, err)
	}
	if !info.Mode().IsRegular() {
		return services.Wrap(services.ErrValidation, "fileutil", "check", fmt.Sprintf("%s is not a file", path), nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "fileutil", "check", fmt.Sprintf("%s is a 0-byte file", path), nil)
	}
	return nil
}

// Exists reports whether anything is present at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// RemoveBestEffort deletes path and reports whether it is gone. Removal
// errors, permission denied included, are logged and swallowed.
func RemoveBestEffort(path string, logger *slog.Logger) bool {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	logging.WarnWithContext(logger, "could not remove partial output", "partial_output_left",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "delete the file manually before rerunning"),
		logging.String(logging.FieldImpact, "an incomplete output file remains on disk"),
	)
	return false
}
