package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model set variants. "best" holds the slower, more accurate LSTM models;
// "fast" the integerized ones.
const (
	VariantBest = "best"
	VariantFast = "fast"
)

// DefaultTessdataDir is the directory holding the best/ and fast/ model sets.
const DefaultTessdataDir = "tessdata"

// EnvTessdataDir overrides the tessdata root.
const EnvTessdataDir = "NOTELY_TESSDATA_DIR"

// TrainedDataExt is the file extension of a language model.
const TrainedDataExt = ".traineddata"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("could not find project root (go.mod not found)")
}

// GetTessdataDir returns the tessdata root.
// Priority: 1. Explicit dir parameter, 2. Environment variable, 3. Project root + default.
func GetTessdataDir(dir string) string {
	if dir != "" {
		return dir
	}

	if envDir := os.Getenv(EnvTessdataDir); envDir != "" {
		return envDir
	}

	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultTessdataDir)
	}

	return DefaultTessdataDir
}

// ModelSet locates the two tessdata model sets.
type ModelSet struct {
	BestDir string
	FastDir string
}

// ResolveModelSet returns the model set below root. A root without best/
// and fast/ subdirectories is used for both variants (flat layout).
func ResolveModelSet(root string) ModelSet {
	base := GetTessdataDir(root)
	set := ModelSet{
		BestDir: filepath.Join(base, VariantBest),
		FastDir: filepath.Join(base, VariantFast),
	}
	if !isDir(set.BestDir) && !isDir(set.FastDir) {
		return ModelSet{BestDir: base, FastDir: base}
	}
	return set
}

// Dir returns the directory of the requested variant.
func (m ModelSet) Dir(best bool) string {
	if best {
		return m.BestDir
	}
	return m.FastDir
}

// Variant names the variant for logging.
func Variant(best bool) string {
	if best {
		return VariantBest
	}
	return VariantFast
}

// ValidateLanguages checks that every language has a model in dir.
func ValidateLanguages(dir string, languages []string) error {
	for _, lang := range languages {
		path := filepath.Join(dir, lang+TrainedDataExt)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("model file not found: %s", path)
		}
	}
	return nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
