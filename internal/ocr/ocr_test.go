package ocr

import (
	"context"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"defaults", DefaultConfig(), ""},
		{"oem 0 psm 13", Config{EngineMode: 0, SegmentationMode: 13}, ""},
		{"oem -1", Config{EngineMode: -1, SegmentationMode: 3}, "oem"},
		{"oem 4", Config{EngineMode: 4, SegmentationMode: 3}, "oem"},
		{"psm 2", Config{EngineMode: 3, SegmentationMode: 2}, "psm"},
		{"psm 0", Config{EngineMode: 3, SegmentationMode: 0}, "psm"},
		{"psm 14", Config{EngineMode: 3, SegmentationMode: 14}, "psm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrConfig)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestConfigString(t *testing.T) {
	assert.Equal(t, "--oem 1 --psm 6", Config{EngineMode: 1, SegmentationMode: 6}.String())
}

func TestDataValidateAndTokens(t *testing.T) {
	d := &Data{}
	d.Append(Token{Left: 1, Top: 2, Width: 3, Height: 4, Conf: 90, Text: "hi"})
	d.Append(Token{Conf: 0, Text: " "})
	require.NoError(t, d.Validate())
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, "hi", d.Tokens()[0].Text)

	d.Conf = d.Conf[:1]
	require.ErrorIs(t, d.Validate(), ErrMalformed)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank("   "))
	assert.True(t, IsBlank("\t\n "))
	assert.False(t, IsBlank(" a "))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0, ClampConfidence(-1))
	assert.Equal(t, 55, ClampConfidence(55))
	assert.Equal(t, 100, ClampConfidence(140))
}

func TestCLIEngineArgs(t *testing.T) {
	e := NewCLIEngine(WithTesseractPath("/opt/tesseract"))
	args := e.Args(Request{EngineMode: 1, SegmentationMode: 6, TessdataDir: "/td/best", Languages: []string{"eng", "deu"}})
	assert.Equal(t, []string{
		"stdin", "stdout", "--oem", "1", "--psm", "6",
		"--tessdata-dir", "/td/best", "-l", "eng+deu", "tsv",
	}, args)
	assert.Equal(t, "/opt/tesseract", e.path)
}

// fakeTesseract writes a shell script that ignores its input and prints a
// fixed TSV document.
func fakeTesseract(t *testing.T, tsv string, exitCode int) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	data := filepath.Join(dir, "out.tsv")
	require.NoError(t, os.WriteFile(data, []byte(tsv), 0o600))
	script := filepath.Join(dir, "tesseract")
	body := "#!/bin/sh\ncat > /dev/null\ncat '" + data + "'\necho oops >&2\nexit " + string(rune('0'+exitCode)) + "\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o700)) //nolint:gosec // test helper script
	return script
}

func TestCLIEngineRecognize(t *testing.T) {
	tsv := strings.Join([]string{
		strings.Join(tsvColumns, "\t"),
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t50\t-1\t",
		"5\t1\t1\t1\t1\t1\t10\t12\t30\t9\t91.6\tHello",
		"5\t1\t1\t1\t1\t2\t45\t12\t28\t9\t47.2\tworld",
	}, "\n") + "\n"

	e := NewCLIEngine(WithTesseractPath(fakeTesseract(t, tsv, 0)))
	data, err := e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), Request{EngineMode: 3, SegmentationMode: 3})
	require.NoError(t, err)
	require.Equal(t, 3, data.Len())
	assert.Equal(t, []string{"", "Hello", "world"}, data.Text)
	assert.Equal(t, []int{0, 92, 47}, data.Conf)
	assert.Equal(t, []int{0, 10, 45}, data.Left)
}

func TestCLIEngineRecognize_Failure(t *testing.T) {
	e := NewCLIEngine(WithTesseractPath(fakeTesseract(t, "", 1)))
	_, err := e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestCLIEngineRecognize_MissingBinary(t *testing.T) {
	e := NewCLIEngine(WithTesseractPath(filepath.Join(t.TempDir(), "nope")))
	_, err := e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)), Request{})
	require.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine("", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "tesseract-cli", e.Name())

	_, err = NewEngine("onnx", "", nil)
	require.Error(t, err)

	g, err := NewEngine(EngineGosseract, "", nil)
	if GosseractAvailable {
		require.NoError(t, err)
		assert.Equal(t, "tesseract-cgo", g.Name())
	} else {
		require.ErrorIs(t, err, ErrEngineUnavailable)
	}
}
