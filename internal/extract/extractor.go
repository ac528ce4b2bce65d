package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"diagbench/internal/classify"
	"diagbench/internal/models"
	"diagbench/internal/util"
)

// ImageSource opens a PDF and exposes its images in document order. The
// production implementation rasterizes pages; tests use an in-memory fake.
type ImageSource interface {
	Open(path string) (Document, error)
}

// Document is one opened PDF. PageImages returns only the images that decoded
// cleanly for that page; a page-level error means the whole page is skipped.
type Document interface {
	PageCount() int
	PageImages(pageIndex int) ([]image.Image, error)
	Close() error
}

// PagePrioritizer reorders the page scan. The default is document order; the
// keyword prioritizer moves figure-dense pages to the front.
type PagePrioritizer interface {
	Order(path string, pageCount int) []int
}

// Extractor scans a paper's images and returns the first one the classifier
// accepts. First match wins; later pages are never examined once an image is
// accepted.
type Extractor struct {
	source      ImageSource
	classifier  *classify.Classifier
	prioritizer PagePrioritizer
}

func New(source ImageSource, classifier *classify.Classifier) *Extractor {
	return &Extractor{source: source, classifier: classifier}
}

// WithPrioritizer enables an alternate page scan order.
func (e *Extractor) WithPrioritizer(p PagePrioritizer) *Extractor {
	e.prioritizer = p
	return e
}

// Extract returns the accepted diagram and its PNG encoding, or (nil, nil,
// nil) when no image in the document passes the classifier. A document that
// cannot be opened is a paper-level failure wrapping ErrMalformedDocument.
func (e *Extractor) Extract(ctx context.Context, path, paperID string) (*models.DiagramRecord, []byte, error) {
	doc, err := e.source.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", util.ErrMalformedDocument, path, err)
	}
	defer doc.Close()

	order := e.pageOrder(path, doc.PageCount())
	for _, pageIdx := range order {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		images, err := doc.PageImages(pageIdx)
		if err != nil {
			// One unreadable page must not abort the document scan.
			continue
		}
		for imgIdx, img := range images {
			res := e.classifier.Classify(img)
			if res.Decision != models.DecisionAccept {
				continue
			}
			data, err := encodePNG(img)
			if err != nil {
				continue
			}
			b := img.Bounds()
			return &models.DiagramRecord{
				PaperID: paperID,
				Image: models.CandidateImage{
					PaperID:    paperID,
					PageIndex:  pageIdx,
					ImageIndex: imgIdx,
					Width:      b.Dx(),
					Height:     b.Dy(),
				},
				AcceptedAt: time.Now().UTC(),
			}, data, nil
		}
	}
	return nil, nil, nil
}

func (e *Extractor) pageOrder(path string, pageCount int) []int {
	if e.prioritizer != nil {
		if order := e.prioritizer.Order(path, pageCount); len(order) == pageCount {
			return order
		}
	}
	order := make([]int, pageCount)
	for i := range order {
		order[i] = i
	}
	return order
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
