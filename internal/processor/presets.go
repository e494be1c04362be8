package processor

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/notely/internal/imagepipe"
	"github.com/MeKo-Tech/notely/internal/ocr"
)

// Preset names.
const (
	PresetScreenshot           = "screenshot"
	PresetPrinted              = "printed"
	PresetHandwrittenParagraph = "handwritten-paragraph"
	PresetHandwrittenPage      = "handwritten-page"
)

// Preset bundles recognition settings for a kind of source material.
type Preset struct {
	Name        string
	Description string
	Config      ocr.Config
	Steps       []imagepipe.StepSpec
}

var presets = []Preset{
	{
		Name:        PresetScreenshot,
		Description: "Screenshots and digital renders, no preprocessing",
		Config:      ocr.Config{EngineMode: 3, SegmentationMode: 3, UseBestModel: true},
	},
	{
		Name:        PresetPrinted,
		Description: "Scanned printed text",
		Config:      ocr.Config{EngineMode: 3, SegmentationMode: 3, UseBestModel: true},
	},
	{
		Name:        PresetHandwrittenParagraph,
		Description: "A single block of handwriting",
		Config:      ocr.Config{EngineMode: 3, SegmentationMode: 6, UseBestModel: true, Preprocess: true},
		Steps: []imagepipe.StepSpec{
			{Name: "Grayscale", Op: imagepipe.OpGrayscale},
			{Name: "Contrast", Op: imagepipe.OpEnhContr, Params: map[string]any{"factor": 3.0}},
			{Name: "Sharpness", Op: imagepipe.OpEnhSharp, Params: map[string]any{"factor": 2.0}},
		},
	},
	{
		Name:        PresetHandwrittenPage,
		Description: "A full page of handwritten notes",
		Config:      ocr.Config{EngineMode: 3, SegmentationMode: 3, UseBestModel: true, Preprocess: true},
		Steps: []imagepipe.StepSpec{
			{Name: "Grayscale", Op: imagepipe.OpGrayscale},
			{Name: "Flat-Field", Op: imagepipe.OpFlatField, Params: map[string]any{"sigma": 10.0}},
			{Name: "Contrast", Op: imagepipe.OpEnhContr, Params: map[string]any{"factor": 2.0}},
		},
	},
}

// Presets returns all presets.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetNames lists the preset names.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// LookupPreset finds a preset by name.
func LookupPreset(name string) (Preset, error) {
	for _, p := range presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown preset %q (must be one of: %s)", name, strings.Join(PresetNames(), ", "))
}

// Pipeline builds the preset's preprocessing chain. Presets without steps
// use the default chain.
func (p Preset) Pipeline(reg *imagepipe.Registry) (*imagepipe.Pipeline, error) {
	if len(p.Steps) == 0 {
		return imagepipe.DefaultPreprocessing(), nil
	}
	if reg == nil {
		reg = imagepipe.DefaultRegistry()
	}
	return reg.Build(p.Steps)
}
