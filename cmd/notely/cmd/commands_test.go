package cmd

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/sources"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/MeKo-Tech/notely/internal/testutil"
	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := utils.EncodePNG(testutil.SolidImage(w, h, color.White))
	require.NoError(t, err)
	return data
}

// seedLibrary writes a database with two documents and returns its path.
func seedLibrary(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "notes.db")
	st, err := store.Open(ctx, dbPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	_, err = st.Commit(ctx, "Physics", nil, []store.NewPage{
		{Index: 0, Image: whitePNG(t, 120, 80), Tokens: []ocr.Token{
			{Left: 10, Top: 10, Width: 40, Height: 20, Conf: 91, Text: "force"},
			{Left: 60, Top: 10, Width: 40, Height: 20, Conf: 55, Text: "equals"},
		}},
		{Index: 1, Image: whitePNG(t, 120, 80), Tokens: []ocr.Token{
			{Left: 5, Top: 40, Width: 30, Height: 15, Conf: 20, Text: "Mass"},
		}},
	})
	require.NoError(t, err)
	_, err = st.Commit(ctx, "chemistry", nil, []store.NewPage{
		{Index: 0, Image: whitePNG(t, 50, 50), Tokens: []ocr.Token{{Conf: 70, Width: 5, Height: 5, Text: "mass balance"}}},
	})
	require.NoError(t, err)
	return dbPath
}

func TestListCommand(t *testing.T) {
	dbPath := seedLibrary(t)

	tests := []struct {
		name     string
		args     []string
		contains []string
		excludes []string
	}{
		{"all", nil, []string{"Physics", "chemistry", "PAGES"}, nil},
		{"title filter", []string{"--filter", "PHYS"}, []string{"Physics"}, []string{"chemistry"}},
		{"content filter", []string{"--filter", "force", "--mode", "content"}, []string{"Physics"}, []string{"chemistry"}},
		{"content matches any word", []string{"--filter", "mass", "--mode", "content"}, []string{"Physics", "chemistry"}, nil},
		{"no match", []string{"--filter", "biology"}, []string{"No documents found"}, []string{"Physics"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, append([]string{"--db", dbPath, "list"}, tt.args...)...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, output, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, output, s)
			}
		})
	}
}

func TestListCommand_InvalidMode(t *testing.T) {
	dbPath := seedLibrary(t)
	_, err := execute(t, "--db", dbPath, "list", "--mode", "tags")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filter mode")
}

func TestSearchCommand(t *testing.T) {
	dbPath := seedLibrary(t)

	output, err := execute(t, "--db", dbPath, "search", "Physics", "force", "mass")
	require.NoError(t, err)
	assert.Contains(t, output, "2 page(s) of Physics")
	assert.Contains(t, output, "Page 0:")
	assert.Contains(t, output, "Page 1:")
	assert.Contains(t, output, "high")
	assert.Contains(t, output, "low")
	assert.NotContains(t, output, "equals")

	output, err = execute(t, "--db", dbPath, "search", "Physics", "mass", "--case-sensitive")
	require.NoError(t, err)
	assert.Contains(t, output, "No matches")

	output, err = execute(t, "--db", dbPath, "search", "Physics", "forse", "--fuzzy", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "Page 0:")
}

func TestSearchCommand_UnknownDocument(t *testing.T) {
	dbPath := seedLibrary(t)
	_, err := execute(t, "--db", dbPath, "search", "Biology", "cell")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestShowCommand_Text(t *testing.T) {
	dbPath := seedLibrary(t)
	output, err := execute(t, "--db", dbPath, "show", "Physics", "0")
	require.NoError(t, err)
	assert.Contains(t, output, "force equals")
}

func TestShowCommand_Export(t *testing.T) {
	dbPath := seedLibrary(t)
	out := filepath.Join(t.TempDir(), "page.png")

	output, err := execute(t, "--db", dbPath, "show", "Physics", "0", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote page 0")
	img, _, err := utils.LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
}

func TestShowCommand_Highlight(t *testing.T) {
	dbPath := seedLibrary(t)
	out := filepath.Join(t.TempDir(), "marked.png")

	output, err := execute(t, "--db", dbPath, "show", "Physics", "0", "--out", out, "--highlight", "force")
	require.NoError(t, err)
	assert.Contains(t, output, "1 highlight(s)")

	img, _, err := utils.LoadImage(out)
	require.NoError(t, err)
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, uint32(0), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0), b)
}

func TestShowCommand_BadPage(t *testing.T) {
	dbPath := seedLibrary(t)

	_, err := execute(t, "--db", dbPath, "show", "Physics", "7")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = execute(t, "--db", dbPath, "show", "Physics", "first")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page number")
}

func TestDeleteCommand(t *testing.T) {
	dbPath := seedLibrary(t)

	output, err := execute(t, "--db", dbPath, "delete", "chemistry")
	require.NoError(t, err)
	assert.Contains(t, output, "Deleted document")

	output, err = execute(t, "--db", dbPath, "list")
	require.NoError(t, err)
	assert.NotContains(t, output, "chemistry")
	assert.Contains(t, output, "Physics")

	_, err = execute(t, "--db", dbPath, "delete", "chemistry")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddCommand_Validation(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o600))
	dbPath := filepath.Join(dir, "notes.db")

	_, err := execute(t, "--db", dbPath, "add", "Physics")
	require.Error(t, err)

	_, err = execute(t, "--db", dbPath, "add", "Physics", txt)
	require.Error(t, err)
	assert.ErrorIs(t, err, sources.ErrUnsupported)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o750))
	_, err = execute(t, "--db", dbPath, "add", "Physics", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files")

	page := testutil.WritePage(t, dir, "page.png", 200, "hello")
	_, err = execute(t, "--db", dbPath, "add", "Physics", page, "--psm", "42")
	require.Error(t, err)
	assert.ErrorIs(t, err, ocr.ErrConfig)

	_, err = execute(t, "--db", dbPath, "add", "Physics", page, "--preset", "blurry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preset")
}

func TestAddCommand_ModeFlagHelp(t *testing.T) {
	assert.Contains(t, addCmd.Flags().Lookup("psm").Usage, "(3-13)")
	assert.Contains(t, addCmd.Flags().Lookup("oem").Usage, "(0-3)")
}

func TestPreprocessCommand(t *testing.T) {
	dir := t.TempDir()
	page := testutil.WritePage(t, dir, "page.png", 200, "hello")
	out := filepath.Join(dir, "out.png")

	output, err := execute(t, "preprocess", page, "--preset", "handwritten-page", "--until", "1", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, output, "Applied 1 of 3 step(s)")
	assert.True(t, testutil.FileExists(out))

	output, err = execute(t, "preprocess", page, "--preset", "handwritten-paragraph", "--list")
	require.NoError(t, err)
	assert.Contains(t, output, "1. Grayscale")
	assert.Contains(t, output, "3. Sharpness")

	_, err = execute(t, "preprocess", page)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--out is required")
}

func TestPreprocessCommand_PipelineFile(t *testing.T) {
	dir := t.TempDir()
	page := testutil.WritePage(t, dir, "page.png", 200, "hello")
	steps := filepath.Join(dir, "steps.yaml")
	require.NoError(t, os.WriteFile(steps, []byte(`steps:
  - name: Gray
    op: grayscale
  - name: Invert
    op: invert
`), 0o600))
	out := filepath.Join(dir, "out.png")

	output, err := execute(t, "preprocess", page, "--pipeline-file", steps, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, output, "Applied 2 of 2 step(s)")

	img, _, err := utils.LoadImage(out)
	require.NoError(t, err)
	// The white background is inverted to black.
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Less(t, r, uint32(0x1000))
}

func TestEvaluateCommand_Validation(t *testing.T) {
	dir := t.TempDir()
	page := testutil.WritePage(t, dir, "page.png", 200, "hello")
	truth := filepath.Join(dir, "truth.txt")
	require.NoError(t, os.WriteFile(truth, []byte("hello"), 0o600))

	_, err := execute(t, "evaluate", page, truth, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")

	emptyTruth := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(emptyTruth, nil, 0o600))
	_, err = execute(t, "evaluate", page, emptyTruth)
	require.Error(t, err)

	_, err = execute(t, "evaluate", page, truth, "--preset", "blurry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preset")
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notely.yaml")

	output, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote default configuration")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "database:")

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)

	output, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "database:")
	assert.Contains(t, output, "psm:")

	output, err = execute(t, "config", "info")
	require.NoError(t, err)
	assert.Contains(t, output, "Environment prefix: NOTELY")
}
