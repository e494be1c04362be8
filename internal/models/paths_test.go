package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTessdataDir(t *testing.T) {
	assert.Equal(t, "/explicit", GetTessdataDir("/explicit"))

	t.Setenv(EnvTessdataDir, "/from/env")
	assert.Equal(t, "/from/env", GetTessdataDir(""))

	t.Setenv(EnvTessdataDir, "")
	assert.Equal(t, DefaultTessdataDir, filepath.Base(GetTessdataDir("")))
}

func TestResolveModelSet(t *testing.T) {
	root := t.TempDir()

	flat := ResolveModelSet(root)
	assert.Equal(t, root, flat.BestDir)
	assert.Equal(t, root, flat.FastDir)

	require.NoError(t, os.MkdirAll(filepath.Join(root, VariantBest), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, VariantFast), 0o755))

	set := ResolveModelSet(root)
	assert.Equal(t, filepath.Join(root, "best"), set.Dir(true))
	assert.Equal(t, filepath.Join(root, "fast"), set.Dir(false))
	assert.Equal(t, "best", Variant(true))
	assert.Equal(t, "fast", Variant(false))
}

func TestValidateLanguages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eng.traineddata"), []byte("x"), 0o600))

	require.NoError(t, ValidateLanguages(dir, []string{"eng"}))
	err := ValidateLanguages(dir, []string{"eng", "deu"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deu.traineddata")
}
