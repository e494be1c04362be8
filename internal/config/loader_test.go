package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	require.NotNil(t, loader)
	assert.Same(t, viper.GetViper(), loader.GetViper())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.Equal(t, "notely.db", cfg.Database.Path)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	content := `
log_level: debug
database:
  path: /var/lib/notely/notes.db
ocr:
  oem: 1
  psm: 6
  best: false
  languages: [eng, deu]
worker:
  pool_size: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notely.yaml"), []byte(content), 0o600))

	loader := newTestLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/notely/notes.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.OCR.EngineMode)
	assert.Equal(t, 6, cfg.OCR.SegmentationMode)
	assert.False(t, cfg.OCR.UseBestModel)
	assert.Equal(t, []string{"eng", "deu"}, cfg.OCR.Languages)
	assert.Equal(t, 3, cfg.Worker.PoolSize)
	// untouched keys keep their defaults
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Contains(t, loader.GetConfigFileUsed(), "notely.yaml")
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\nsearch:\n  mode: content\n"), 0o600))

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "content", cfg.Search.Mode)
}

func TestLoadWithFileMissing(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadWithFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [port: \n"), 0o600))

	_, err := newTestLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ocr:\n  psm: 42\n"), 0o600))

	_, err := newTestLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.OCR.SegmentationMode)
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("NOTELY_LOG_LEVEL", "warn")
	t.Setenv("NOTELY_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("NOTELY_OCR_PSM", "11")
	t.Setenv("NOTELY_SEARCH_CASE_SENSITIVE", "true")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 11, cfg.OCR.SegmentationMode)
	assert.True(t, cfg.Search.CaseSensitive)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Database, cfg.Database)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()

	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "notely"))
	assert.Equal(t, "/etc/notely", paths[len(paths)-1])
}

func TestLoaderAccessors(t *testing.T) {
	loader := newTestLoader()
	loader.Set("database.path", "x.db")
	assert.Equal(t, "x.db", loader.GetString("database.path"))
	assert.Equal(t, "x.db", loader.Get("database.path"))
	assert.Contains(t, loader.GetResolvedConfig(), "database")
}
