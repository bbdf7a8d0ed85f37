package datasets

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

func allExist(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Auto-discovery helpers

// firstMatch returns the first existing file matched by patterns, tried in
// order.
func firstMatch(patterns []string) (string, error) {
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", errors.Errorf("no file matches %v", patterns)
}

// FindMNISTFiles locates the gzipped image and label files of a split in dir.
// Both the idx3-ubyte and idx3.ubyte spellings of the official names are
// recognized.
func FindMNISTFiles(dir string, train bool) (imagePath, labelPath string, err error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	images := []string{
		filepath.Join(dir, prefix+"-images-idx3-ubyte.gz"),
		filepath.Join(dir, prefix+"-images.idx3-ubyte.gz"),
	}
	labels := []string{
		filepath.Join(dir, prefix+"-labels-idx1-ubyte.gz"),
		filepath.Join(dir, prefix+"-labels.idx1-ubyte.gz"),
	}
	if imagePath, err = firstMatch(images); err != nil {
		return "", "", errors.Wrapf(err, "MNIST images for train=%v not found in %s", train, dir)
	}
	if labelPath, err = firstMatch(labels); err != nil {
		return "", "", errors.Wrapf(err, "MNIST labels for train=%v not found in %s", train, dir)
	}
	return imagePath, labelPath, nil
}

// FilesSize is the combined size in bytes of the given files.
func FilesSize(paths ...string) (uint64, error) {
	var total uint64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return 0, errors.Wrap(err, "failed to stat dataset file")
		}
		total += uint64(info.Size())
	}
	return total, nil
}
