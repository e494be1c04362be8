package pdf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/notely/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name        string
		pageRange   string
		want        []int
		expectError bool
	}{
		{name: "empty range returns nil", pageRange: "", want: nil},
		{name: "blank range returns nil", pageRange: "  ", want: nil},
		{name: "single page", pageRange: "1", want: []int{1}},
		{name: "multiple single pages", pageRange: "1,3,5", want: []int{1, 3, 5}},
		{name: "simple range", pageRange: "1-5", want: []int{1, 2, 3, 4, 5}},
		{name: "mixed pages and ranges", pageRange: "1,3-5,7", want: []int{1, 3, 4, 5, 7}},
		{name: "range with spaces", pageRange: " 1 - 3 , 5 ", want: []int{1, 2, 3, 5}},
		{name: "invalid page number", pageRange: "abc", expectError: true},
		{name: "invalid range format", pageRange: "1-2-3", expectError: true},
		{name: "start greater than end", pageRange: "5-1", expectError: true},
		{name: "invalid start page", pageRange: "abc-5", expectError: true},
		{name: "invalid end page", pageRange: "1-xyz", expectError: true},
		{name: "negative page number", pageRange: "-1", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePageRange(tt.pageRange)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePageFromFilename(t *testing.T) {
	tests := []struct {
		filename    string
		want        int
		expectError bool
	}{
		{filename: "page_1_image_1.png", want: 1},
		{filename: "page_10_image_2.jpg", want: 10},
		{filename: "lecture_3_Im0.png", want: 3},
		{filename: "my_notes_12_Im4.jpg", want: 12},
		{filename: "image_1.png", expectError: true},
		{filename: "page_", expectError: true},
		{filename: "page_abc_image_1.png", expectError: true},
		{filename: "not_a_match.png", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := parsePageFromFilename(tt.filename)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectPageFiles_Order(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"doc_2_Im0.png",
		"doc_1_Im10.png",
		"doc_1_Im2.png",
		"doc_10_Im0.jpg",
		"notes.txt",
		"not_a_match.png",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	files, err := collectPageFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"doc_1_Im2.png", "doc_1_Im10.png", "doc_2_Im0.png", "doc_10_Im0.jpg"}, names)
}

func TestSplit_NonPDFPassesThrough(t *testing.T) {
	files, dir, err := Split(context.Background(), "/notes/page.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"/notes/page.png"}, files)
	assert.Empty(t, dir)
}

func TestSplit_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, dir, err := Split(context.Background(), "/non/existent/file.pdf")
		require.Error(t, err)
		assert.Empty(t, dir)
	})

	t.Run("invalid page range", func(t *testing.T) {
		_, _, err := Split(context.Background(), "dummy.pdf", WithPages("x-y"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid page range")
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := Split(ctx, "dummy.pdf")
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("not a pdf body", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.pdf")
		require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))
		_, dir, err := Split(context.Background(), path)
		require.Error(t, err)
		assert.Empty(t, dir)
	})
}

func TestSplitAll_KeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"c", "a", "b"} {
		paths = append(paths, testutil.WritePage(t, dir, name+".png", 120, name))
	}

	files, cleanup, err := SplitAll(context.Background(), paths, WithLimit(2))
	require.NoError(t, err)
	assert.Equal(t, paths, files)
	assert.Empty(t, cleanup)
}

func TestSplitAll_FailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("%PDF-garbage"), 0o600))

	before := tempDirs(t)
	_, cleanup, err := SplitAll(context.Background(), []string{filepath.Join(dir, "ok.png"), broken})
	require.Error(t, err)
	assert.Nil(t, cleanup)
	assert.Equal(t, before, tempDirs(t))
}

func TestRemoveAll(t *testing.T) {
	a := t.TempDir()
	b := filepath.Join(t.TempDir(), "sub")
	require.NoError(t, os.Mkdir(b, 0o750))

	RemoveAll(map[string]string{"x.pdf": a, "y.pdf": b, "z.png": ""})
	assert.NoDirExists(t, a)
	assert.NoDirExists(t, b)
}

func tempDirs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "notely-pdf-") {
			n++
		}
	}
	return n
}

func BenchmarkParsePageRange(b *testing.B) {
	for _, pageRange := range []string{"1", "1-10", "1,3,5,7,9", "1-5,10-15,20"} {
		b.Run("range_"+strings.ReplaceAll(pageRange, ",", "_"), func(b *testing.B) {
			for range b.N {
				_, _ = ParsePageRange(pageRange)
			}
		})
	}
}
