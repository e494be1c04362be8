// Package pdf turns multi-page sources into per-page image files.
package pdf

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrentSplits bounds how many sources SplitAll extracts at once.
const MaxConcurrentSplits = 4

// ErrNoPages is returned when a PDF yields no page images.
var ErrNoPages = errors.New("pdf contains no page images")

type splitOptions struct {
	pages string
	limit int
}

// Option configures Split and SplitAll.
type Option func(*splitOptions)

// WithPages restricts extraction to a page range such as "1-3,5".
func WithPages(pageRange string) Option {
	return func(o *splitOptions) { o.pages = pageRange }
}

// WithLimit overrides MaxConcurrentSplits.
func WithLimit(n int) Option {
	return func(o *splitOptions) {
		if n > 0 {
			o.limit = n
		}
	}
}

func newOptions(opts []Option) splitOptions {
	o := splitOptions{limit: MaxConcurrentSplits}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// IsPDF reports whether path names a PDF by extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Split returns the page images of path. Non-PDF inputs are returned as is
// with an empty tempDir. For PDFs the images are written to a new temporary
// directory, ordered by page, which the caller must remove.
func Split(ctx context.Context, path string, opts ...Option) ([]string, string, error) {
	if !IsPDF(path) {
		return []string{path}, "", nil
	}
	o := newOptions(opts)

	pageNumbers, err := ParsePageRange(o.pages)
	if err != nil {
		return nil, "", fmt.Errorf("invalid page range %q: %w", o.pages, err)
	}
	var selected []string
	for _, n := range pageNumbers {
		selected = append(selected, strconv.Itoa(n))
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	tempDir, err := os.MkdirTemp("", "notely-pdf-*")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	fail := func(err error) ([]string, string, error) {
		_ = os.RemoveAll(tempDir)
		return nil, "", err
	}

	if err := api.ExtractImagesFile(path, tempDir, selected, nil); err != nil {
		return fail(fmt.Errorf("failed to extract images from %s: %w", path, err))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	files, err := collectPageFiles(tempDir)
	if err != nil {
		return fail(fmt.Errorf("failed to collect extracted images: %w", err))
	}
	if len(files) == 0 {
		return fail(fmt.Errorf("%s: %w", path, ErrNoPages))
	}
	return files, tempDir, nil
}

// SplitAll splits every source concurrently. files keeps the order of paths
// and cleanup maps each PDF source to its temporary directory. On error all
// temporary directories created so far are removed.
func SplitAll(ctx context.Context, paths []string, opts ...Option) ([]string, map[string]string, error) {
	o := newOptions(opts)
	perSource := make([][]string, len(paths))
	cleanup := make(map[string]string)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit)
	for i, path := range paths {
		g.Go(func() error {
			files, dir, err := Split(gctx, path, opts...)
			if err != nil {
				return err
			}
			perSource[i] = files
			if dir != "" {
				mu.Lock()
				cleanup[path] = dir
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		RemoveAll(cleanup)
		return nil, nil, err
	}

	var files []string
	for _, f := range perSource {
		files = append(files, f...)
	}
	return files, cleanup, nil
}

// RemoveAll deletes the temporary directories of a cleanup map.
func RemoveAll(cleanup map[string]string) {
	for _, dir := range cleanup {
		if dir != "" {
			_ = os.RemoveAll(dir)
		}
	}
}

type pageFile struct {
	path  string
	page  int
	image string
}

// collectPageFiles lists the images pdfcpu wrote to dir, ordered by page and
// then by image name.
func collectPageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var found []pageFile
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		page, err := parsePageFromFilename(e.Name())
		if err != nil {
			continue
		}
		found = append(found, pageFile{
			path:  filepath.Join(dir, e.Name()),
			page:  page,
			image: imageKey(e.Name()),
		})
	}
	slices.SortFunc(found, func(a, b pageFile) int {
		if c := cmp.Compare(a.page, b.page); c != 0 {
			return c
		}
		return compareNatural(a.image, b.image)
	})

	files := make([]string, len(found))
	for i, f := range found {
		files[i] = f.path
	}
	return files, nil
}

// parsePageFromFilename extracts the page number from an extracted image
// name. pdfcpu writes <base>_<page>_<id>.<ext>; the older page_<page>_...
// form is accepted too.
func parsePageFromFilename(filename string) (int, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")

	var token string
	switch {
	case parts[0] == "page" && len(parts) >= 2:
		token = parts[1]
	case len(parts) >= 3:
		token = parts[len(parts)-2]
	default:
		return 0, errors.New("invalid filename format")
	}

	page, err := strconv.Atoi(token)
	if err != nil || page < 0 {
		return 0, errors.New("invalid page number")
	}
	return page, nil
}

func imageKey(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")
	return parts[len(parts)-1]
}

// compareNatural orders "Im2" before "Im10".
func compareNatural(a, b string) int {
	pa, na := splitTrailingNumber(a)
	pb, nb := splitTrailingNumber(b)
	if c := strings.Compare(pa, pb); c != 0 {
		return c
	}
	return cmp.Compare(na, nb)
}

func splitTrailingNumber(s string) (string, int) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	n, _ := strconv.Atoi(s[i:])
	return s[:i], n
}

// ParsePageRange parses a page range such as "1-5" or "1,3,5". An empty
// range selects all pages and returns nil.
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page ("3") or a range ("1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
