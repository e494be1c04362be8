package support

import (
	"context"
	"fmt"
	"image/color"
	"strconv"

	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/MeKo-Tech/notely/internal/testutil"
	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/cucumber/godog"
)

// seedPage is one row of a library table.
type seedPage struct {
	page int
	text string
	conf int
}

// aLibraryWithTheDocuments seeds the scenario database from a table with
// the columns name, page, text and conf. Each row is one word; words of
// the same page are laid out left to right.
func (testCtx *TestContext) aLibraryWithTheDocuments(table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("library table needs a header and at least one row")
	}
	header := map[string]int{}
	for i, c := range table.Rows[0].Cells {
		header[c.Value] = i
	}
	for _, col := range []string{"name", "page", "text", "conf"} {
		if _, ok := header[col]; !ok {
			return fmt.Errorf("library table is missing column %q", col)
		}
	}

	var order []string
	docs := map[string][]seedPage{}
	for _, row := range table.Rows[1:] {
		cell := func(col string) string { return row.Cells[header[col]].Value }
		page, err := strconv.Atoi(cell("page"))
		if err != nil {
			return fmt.Errorf("bad page %q: %w", cell("page"), err)
		}
		conf, err := strconv.Atoi(cell("conf"))
		if err != nil {
			return fmt.Errorf("bad conf %q: %w", cell("conf"), err)
		}
		name := cell("name")
		if _, seen := docs[name]; !seen {
			order = append(order, name)
		}
		docs[name] = append(docs[name], seedPage{page: page, text: cell("text"), conf: conf})
	}

	ctx := context.Background()
	st, err := store.Open(ctx, testCtx.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	for _, name := range order {
		pages, err := newPages(docs[name])
		if err != nil {
			return err
		}
		id, err := st.Commit(ctx, name, nil, pages)
		if err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		testCtx.DocumentIDs[name] = id
	}
	return nil
}

func newPages(rows []seedPage) ([]store.NewPage, error) {
	byIndex := map[int]*store.NewPage{}
	maxIndex := -1
	for _, r := range rows {
		p, ok := byIndex[r.page]
		if !ok {
			img, err := utils.EncodePNG(testutil.SolidImage(400, 100, color.White))
			if err != nil {
				return nil, err
			}
			p = &store.NewPage{Index: r.page, Image: img}
			byIndex[r.page] = p
		}
		left := 10 + 90*len(p.Tokens)
		p.Tokens = append(p.Tokens, ocr.Token{Left: left, Top: 20, Width: 80, Height: 24, Conf: r.conf, Text: r.text})
		maxIndex = max(maxIndex, r.page)
	}
	pages := make([]store.NewPage, 0, len(byIndex))
	for i := 0; i <= maxIndex; i++ {
		if p, ok := byIndex[i]; ok {
			pages = append(pages, *p)
		}
	}
	return pages, nil
}

// anImageWithTheText renders a page image into the scenario directory.
func (testCtx *TestContext) anImageWithTheText(name, text string) error {
	cfg := testutil.DefaultTestImageConfig()
	cfg.Lines = []string{text}
	return utils.SaveImage(testutil.GenerateTextImage(cfg), testCtx.TempPath(name))
}

// RegisterLibrarySteps registers the steps that prepare library state.
func (testCtx *TestContext) RegisterLibrarySteps(sc *godog.ScenarioContext) {
	sc.Step(`^a library with the documents:$`, testCtx.aLibraryWithTheDocuments)
	sc.Step(`^an image "([^"]*)" with the text "([^"]*)"$`, testCtx.anImageWithTheText)
}
