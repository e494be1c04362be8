package processor

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/notely/internal/imagepipe"
	"github.com/MeKo-Tech/notely/internal/models"
	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/testutil"
	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessImage(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePage(t, dir, "page.png", 200, "Meeting notes")
	engine := &testutil.FakeEngine{
		ByWidth: map[int]*ocr.Data{200: testutil.Tokens(
			ocr.Token{Left: 0, Top: 0, Width: 200, Height: 120, Conf: -1, Text: ""},
			ocr.Token{Left: 8, Top: 4, Width: 50, Height: 13, Conf: 91, Text: "Meeting"},
			ocr.Token{Left: 64, Top: 4, Width: 35, Height: 13, Conf: 77, Text: "notes"},
			ocr.Token{Left: 100, Top: 4, Width: 5, Height: 13, Conf: 40, Text: "  "},
		)},
	}
	p := New(engine,
		WithModelSet(models.ModelSet{BestDir: "/td/best", FastDir: "/td/fast"}),
		WithLanguages("eng"))

	res, err := p.ProcessImage(context.Background(), 4, path, ocr.Config{EngineMode: 1, SegmentationMode: 6, UseBestModel: false})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Index)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 4, res.Data.Len(), "engine output is kept as emitted")
	assert.Equal(t, []string{"Meeting", "notes"}, res.Summary.Texts)
	assert.Equal(t, []int{8, 64}, res.Summary.Left)

	req := engine.Requests()[0]
	assert.Equal(t, "/td/fast", req.TessdataDir)
	assert.Equal(t, 1, req.EngineMode)
	assert.Equal(t, 6, req.SegmentationMode)
	assert.Equal(t, []string{"eng"}, req.Languages)
}

func TestProcessImage_KeepsOriginalWhenPreprocessing(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePage(t, dir, "page.png", 160, "x")
	src, _, err := utils.LoadImage(path)
	require.NoError(t, err)

	var seen []uint8
	inv, err := imagepipe.New(imagepipe.NewDirectStep("invert", imagepipe.Invert, nil, 0))
	require.NoError(t, err)
	engine := &recordingEngine{fn: func(pix []uint8) { seen = pix }}

	p := New(engine, WithPipeline(inv))
	res, err := p.ProcessImage(context.Background(), 0, path, ocr.Config{EngineMode: 3, SegmentationMode: 3, Preprocess: true})
	require.NoError(t, err)

	stored, err := utils.DecodeImage(res.Image)
	require.NoError(t, err)
	assert.Equal(t, imaging.Clone(src).Pix, imaging.Clone(stored).Pix, "stored image is the unprocessed original")
	assert.Equal(t, imaging.Invert(src).Pix, seen, "engine sees the processed image")
}

func TestProcessImage_NoPreprocessing(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePage(t, dir, "page.png", 160, "x")
	src, _, err := utils.LoadImage(path)
	require.NoError(t, err)

	var seen []uint8
	engine := &recordingEngine{fn: func(pix []uint8) { seen = pix }}
	_, err = New(engine).ProcessImage(context.Background(), 0, path, ocr.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, imaging.Clone(src).Pix, seen)
}

func TestProcessImage_InvalidConfig(t *testing.T) {
	engine := &testutil.FakeEngine{}
	p := New(engine)

	for _, cfg := range []ocr.Config{
		{EngineMode: 4, SegmentationMode: 3},
		{EngineMode: 3, SegmentationMode: 2},
		{EngineMode: -1, SegmentationMode: 3},
	} {
		res, err := p.ProcessImage(context.Background(), 0, "unused.png", cfg)
		require.ErrorIs(t, err, ocr.ErrConfig)
		assert.Nil(t, res)
	}
	assert.Equal(t, 0, engine.Calls())
}

func TestProcessImage_DecodeFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))

	_, err := New(&testutil.FakeEngine{}).ProcessImage(context.Background(), 0, bad, ocr.DefaultConfig())
	require.ErrorIs(t, err, ErrDecode)

	_, err = New(&testutil.FakeEngine{}).ProcessImage(context.Background(), 0, filepath.Join(dir, "missing.png"), ocr.DefaultConfig())
	require.ErrorIs(t, err, ErrDecode)
}

func TestProcessImage_EngineFailures(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	engine := &testutil.FakeEngine{
		ErrOn:   map[int]error{100: boom},
		PanicOn: map[int]bool{110: true},
		ByWidth: map[int]*ocr.Data{120: {Text: []string{"a"}}},
	}
	p := New(engine)

	_, err := p.ProcessImage(context.Background(), 0, testutil.WritePage(t, dir, "a.png", 100), ocr.DefaultConfig())
	require.ErrorIs(t, err, ErrEngine)
	require.ErrorIs(t, err, boom)

	_, err = p.ProcessImage(context.Background(), 1, testutil.WritePage(t, dir, "b.png", 110), ocr.DefaultConfig())
	require.ErrorIs(t, err, ErrEngine)
	assert.Contains(t, err.Error(), "panicked")

	_, err = p.ProcessImage(context.Background(), 2, testutil.WritePage(t, dir, "c.png", 120), ocr.DefaultConfig())
	require.ErrorIs(t, err, ErrEngine)
	require.ErrorIs(t, err, ocr.ErrMalformed)
}

func TestProcessImage_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&testutil.FakeEngine{}).ProcessImage(ctx, 0, "x.png", ocr.DefaultConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestPresets(t *testing.T) {
	names := PresetNames()
	assert.Equal(t, []string{PresetScreenshot, PresetPrinted, PresetHandwrittenParagraph, PresetHandwrittenPage}, names)

	for _, p := range Presets() {
		require.NoError(t, p.Config.Validate(), p.Name)
		pipe, err := p.Pipeline(nil)
		require.NoError(t, err, p.Name)
		assert.False(t, pipe.Empty())
	}

	para, err := LookupPreset(PresetHandwrittenParagraph)
	require.NoError(t, err)
	assert.Equal(t, 6, para.Config.SegmentationMode)
	assert.True(t, para.Config.Preprocess)

	shot, err := LookupPreset(PresetScreenshot)
	require.NoError(t, err)
	assert.False(t, shot.Config.Preprocess)

	_, err = LookupPreset("custom")
	require.Error(t, err)
}

// recordingEngine hands the pixels it receives to fn.
type recordingEngine struct {
	fn func(pix []uint8)
}

func (r *recordingEngine) Name() string { return "recording" }

func (r *recordingEngine) Recognize(_ context.Context, img image.Image, _ ocr.Request) (*ocr.Data, error) {
	r.fn(imaging.Clone(img).Pix)
	return &ocr.Data{}, nil
}
