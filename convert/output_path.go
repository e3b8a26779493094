package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"opfgen/config"
)

// stdoutName as destination sends package document to standard output.
const stdoutName = "-"

// buildOutputPath returns package document file name for requested
// destination. Empty destination means current working directory, existing
// directory or path ending with separator gets configured output name.
func buildOutputPath(dst string, cfg *config.PackageConfig) (string, error) {
	if dst == stdoutName {
		return stdoutName, nil
	}

	if len(dst) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("unable to get working directory: %w", err)
		}
		return filepath.Join(wd, cfg.OutputName), nil
	}

	isDir := strings.HasSuffix(dst, string(filepath.Separator)) || strings.HasSuffix(dst, "/")
	dst, err := filepath.Abs(dst)
	if err != nil {
		return "", err
	}
	if !isDir {
		if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
			isDir = true
		}
	}
	if isDir {
		return filepath.Join(dst, cfg.OutputName), nil
	}
	return dst, nil
}
