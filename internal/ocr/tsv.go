package ocr

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// TSV column names emitted by `tesseract ... tsv`.
var tsvColumns = []string{
	"level", "page_num", "block_num", "par_num", "line_num", "word_num",
	"left", "top", "width", "height", "conf", "text",
}

// ParseTSV reads Tesseract TSV output. Every row becomes a token, including
// the structural rows with conf -1 and empty text, so the result mirrors the
// engine's emission order. Fields are split on tabs only; recognized text may
// contain quote characters, which rules out a CSV reader.
func ParseTSV(r io.Reader) (*Data, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read tsv header: %w", err)
		}
		return &Data{}, nil
	}
	idx, err := tsvIndex(strings.Split(strings.TrimRight(sc.Text(), "\r"), "\t"))
	if err != nil {
		return nil, err
	}

	data := &Data{}
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		tok, err := parseTSVRecord(strings.Split(text, "\t"), idx)
		if err != nil {
			return nil, fmt.Errorf("tsv line %d: %w", line, err)
		}
		data.Append(tok)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tsv line %d: %w", line+1, err)
	}
	return data, nil
}

func tsvIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range tsvColumns[6:] {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: tsv header missing column %q", ErrMalformed, col)
		}
	}
	return idx, nil
}

func parseTSVRecord(rec []string, idx map[string]int) (Token, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var tok Token
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"left", &tok.Left},
		{"top", &tok.Top},
		{"width", &tok.Width},
		{"height", &tok.Height},
	} {
		v, err := strconv.Atoi(strings.TrimSpace(field(f.name)))
		if err != nil {
			return Token{}, fmt.Errorf("%w: column %s: %v", ErrMalformed, f.name, err)
		}
		*f.dst = max(v, 0)
	}

	conf, err := strconv.ParseFloat(strings.TrimSpace(field("conf")), 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: column conf: %v", ErrMalformed, err)
	}
	tok.Conf = ClampConfidence(int(math.Round(conf)))
	tok.Text = field("text")
	return tok, nil
}
