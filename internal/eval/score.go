package eval

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/MeKo-Tech/notely/internal/imagepipe"
	"github.com/MeKo-Tech/notely/internal/ocr"
)

// Score is the result of running one preprocessing chain against ground
// truth.
type Score struct {
	Name      string        `json:"name"`
	Loss      float64       `json:"score"`
	Predicted []string      `json:"predicted"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ScorePipeline preprocesses img with p (nil means no preprocessing),
// recognizes it and scores the visible tokens against expected.
func ScorePipeline(ctx context.Context, engine ocr.Engine, p *imagepipe.Pipeline, img image.Image,
	expected []string, req ocr.Request, tol Tolerance,
) (Score, error) {
	start := time.Now()
	input := img
	if p != nil && !p.Empty() {
		var err error
		if input, err = p.Run(img); err != nil {
			return Score{}, fmt.Errorf("preprocess: %w", err)
		}
	}

	data, err := engine.Recognize(ctx, input, req)
	if err != nil {
		return Score{}, fmt.Errorf("recognize: %w", err)
	}
	if err := data.Validate(); err != nil {
		return Score{}, err
	}

	var predicted []string
	for _, text := range data.Text {
		if !ocr.IsBlank(text) {
			predicted = append(predicted, text)
		}
	}
	loss, err := ZeroOneLoss(expected, predicted, tol)
	if err != nil {
		return Score{}, err
	}
	return Score{Loss: loss, Predicted: predicted, Elapsed: time.Since(start)}, nil
}

// Candidate is a named preprocessing chain to compare.
type Candidate struct {
	Name     string
	Pipeline *imagepipe.Pipeline
	Request  ocr.Request
}

// Compare scores every candidate on img and returns the scores, best first.
func Compare(ctx context.Context, engine ocr.Engine, img image.Image, expected []string,
	candidates []Candidate, tol Tolerance,
) ([]Score, error) {
	scores := make([]Score, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := ScorePipeline(ctx, engine, c.Pipeline, img, expected, c.Request, tol)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
		s.Name = c.Name
		scores = append(scores, s)
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].Loss > scores[b].Loss })
	return scores, nil
}

// ReadGroundTruth reads whitespace-separated expected words from path.
func ReadGroundTruth(path string) ([]string, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: ground truth path is user-provided
	if err != nil {
		return nil, err
	}
	words := strings.Fields(string(b))
	if len(words) == 0 {
		return nil, ErrNoExpected
	}
	return words, nil
}
