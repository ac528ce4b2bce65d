package pdfimages

import (
	"strings"

	"github.com/ledongthuc/pdf"
)

// figureKeywords mark pages likely to carry an architecture or flowchart
// figure.
var figureKeywords = []string{
	"figure",
	"fig.",
	"flowchart",
	"architecture",
	"framework",
	"pipeline",
	"overview",
	"diagram",
	"workflow",
}

// KeywordPrioritizer reads each page's text and moves keyword-bearing pages to
// the front of the scan, keeping document order within each group. Changing
// the scan order changes which diagram wins first-match, so this is opt-in.
type KeywordPrioritizer struct {
	keywords []string
}

func NewKeywordPrioritizer() *KeywordPrioritizer {
	return &KeywordPrioritizer{keywords: figureKeywords}
}

// Order returns the page scan order. On any text-extraction failure it falls
// back to plain document order; prioritization is best-effort.
func (k *KeywordPrioritizer) Order(path string, pageCount int) []int {
	documentOrder := make([]int, pageCount)
	for i := range documentOrder {
		documentOrder[i] = i
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return documentOrder
	}
	defer f.Close()

	var keyed, rest []int
	for i := 0; i < pageCount && i < r.NumPage(); i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			rest = append(rest, i)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err == nil && k.hasKeyword(text) {
			keyed = append(keyed, i)
		} else {
			rest = append(rest, i)
		}
	}
	for i := r.NumPage(); i < pageCount; i++ {
		rest = append(rest, i)
	}

	out := append(keyed, rest...)
	if len(out) != pageCount {
		return documentOrder
	}
	return out
}

func (k *KeywordPrioritizer) hasKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
