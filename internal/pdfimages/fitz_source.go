package pdfimages

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"diagbench/internal/extract"
)

const defaultRenderDPI = 150

// FitzSource rasterizes PDF pages with MuPDF and segments each rendered page
// into candidate figure regions. Rendering the page instead of pulling
// embedded XObjects keeps vector-drawn figures, which most paper diagrams
// are.
type FitzSource struct {
	segmenter Segmenter
	dpi       float64
}

func NewFitzSource(segmenter Segmenter) *FitzSource {
	return &FitzSource{segmenter: segmenter, dpi: defaultRenderDPI}
}

// WithDPI overrides the page render resolution.
func (s *FitzSource) WithDPI(dpi int) *FitzSource {
	if dpi > 0 {
		s.dpi = float64(dpi)
	}
	return s
}

func (s *FitzSource) Open(path string) (extract.Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if doc.NumPage() == 0 {
		doc.Close()
		return nil, fmt.Errorf("pdf has no pages")
	}
	return &fitzDocument{doc: doc, segmenter: s.segmenter, dpi: s.dpi}, nil
}

type fitzDocument struct {
	doc       *fitz.Document
	segmenter Segmenter
	dpi       float64
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) PageImages(pageIndex int) ([]image.Image, error) {
	img, err := d.doc.ImageDPI(pageIndex, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageIndex, err)
	}
	return d.segmenter.Segment(img), nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
