// Package sources expands command-line inputs into the page files of a
// batch: images and PDFs, with directories walked in natural name order.
package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/notely/internal/pdf"
	"github.com/MeKo-Tech/notely/internal/utils"
)

// ErrUnsupported is returned for an explicitly named file that is neither
// an image nor a PDF.
var ErrUnsupported = errors.New("unsupported file type")

// Options controls directory expansion.
type Options struct {
	Recursive bool
	// Include and Exclude are filepath.Match patterns applied to base names.
	Include []string
	Exclude []string
}

// Supported reports whether path is a page image or a PDF.
func Supported(path string) bool {
	return utils.IsSupportedImage(path) || pdf.IsPDF(path)
}

// Discover returns the files named by args in argument order. Directories
// contribute their supported files sorted naturally, so "page2" comes
// before "page10". Files named directly must be supported.
func Discover(args []string, opts Options) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			found, err := discoverInDirectory(arg, opts)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		if !Supported(arg) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, arg)
		}
		if shouldIncludeFile(arg, opts.Include, opts.Exclude) {
			files = append(files, arg)
		}
	}
	return files, nil
}

func discoverInDirectory(dir string, opts Options) ([]string, error) {
	var files []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) && shouldIncludeFile(path, opts.Include, opts.Exclude) {
			files = append(files, path)
		}
		return nil
	}
	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, err
	}
	slices.SortStableFunc(files, func(a, b string) int {
		if c := naturalCompare(filepath.Dir(a), filepath.Dir(b)); c != 0 {
			return c
		}
		return naturalCompare(filepath.Base(a), filepath.Base(b))
	})
	return files, nil
}

// shouldIncludeFile applies exclude patterns first; without include
// patterns everything else is kept.
func shouldIncludeFile(path string, include, exclude []string) bool {
	if matchesAnyPattern(path, exclude) {
		return false
	}
	if len(include) == 0 {
		return true
	}
	return matchesAnyPattern(path, include)
}

func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// naturalCompare compares strings chunk by chunk, treating digit runs as
// numbers.
func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		ca, restA := nextChunk(a)
		cb, restB := nextChunk(b)
		if isDigit(ca[0]) && isDigit(cb[0]) {
			na := strings.TrimLeft(ca, "0")
			nb := strings.TrimLeft(cb, "0")
			if len(na) != len(nb) {
				if len(na) < len(nb) {
					return -1
				}
				return 1
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
		} else if c := strings.Compare(ca, cb); c != 0 {
			return c
		}
		a, b = restA, restB
	}
	return strings.Compare(a, b)
}

func nextChunk(s string) (chunk, rest string) {
	digits := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
