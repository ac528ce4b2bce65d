package extract

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"diagbench/internal/classify"
	"diagbench/internal/models"
)

// fakeDoc serves canned page images and records which pages were scanned.
type fakeDoc struct {
	pages   [][]image.Image
	pageErr map[int]error
	scanned []int
	closed  bool
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) PageImages(i int) ([]image.Image, error) {
	d.scanned = append(d.scanned, i)
	if err := d.pageErr[i]; err != nil {
		return nil, err
	}
	return d.pages[i], nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeSource struct {
	doc     *fakeDoc
	openErr error
}

func (s *fakeSource) Open(string) (Document, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.doc, nil
}

// acceptable builds an image that clears every default gate.
func acceptable() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 600; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	palette := []color.RGBA{
		{200, 30, 30, 255}, {30, 200, 30, 255}, {30, 30, 200, 255},
		{200, 200, 30, 255}, {30, 200, 200, 255}, {200, 30, 200, 255},
		{0, 0, 0, 255}, {120, 120, 120, 255}, {60, 120, 180, 255},
	}
	for i, c := range palette {
		for y := 100; y < 200; y++ {
			for x := 20 + i*60; x < 60+i*60; x++ {
				img.Set(x, y, c)
			}
		}
	}
	return img
}

// rejectable is a tiny icon the size gate throws out.
func rejectable() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 32, 32))
}

func newExtractor(doc *fakeDoc) (*Extractor, *fakeSource) {
	src := &fakeSource{doc: doc}
	return New(src, classify.New(classify.DefaultThresholds())), src
}

func TestExtractFirstMatchStopsScanning(t *testing.T) {
	doc := &fakeDoc{pages: [][]image.Image{
		{rejectable()},
		{acceptable()},
		{acceptable()},
	}}
	e, _ := newExtractor(doc)

	rec, data, err := e.Extract(context.Background(), "paper.pdf", "p1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotEmpty(t, data)
	require.Equal(t, 1, rec.Image.PageIndex)
	require.Equal(t, 0, rec.Image.ImageIndex)
	require.Equal(t, []int{0, 1}, doc.scanned, "pages after the accepted one must not be scanned")
	require.True(t, doc.closed)
}

func TestExtractNoDiagramReturnsNil(t *testing.T) {
	doc := &fakeDoc{pages: [][]image.Image{
		{rejectable(), rejectable()},
		{rejectable()},
	}}
	e, _ := newExtractor(doc)

	rec, data, err := e.Extract(context.Background(), "paper.pdf", "p1")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Nil(t, data)
	require.Equal(t, []int{0, 1}, doc.scanned)
}

func TestExtractSkipsUnreadablePages(t *testing.T) {
	doc := &fakeDoc{
		pages:   [][]image.Image{{}, {acceptable()}},
		pageErr: map[int]error{0: errors.New("render failure")},
	}
	e, _ := newExtractor(doc)

	rec, _, err := e.Extract(context.Background(), "paper.pdf", "p1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 1, rec.Image.PageIndex)
}

func TestExtractOpenFailureIsPaperFailure(t *testing.T) {
	src := &fakeSource{openErr: errors.New("corrupt header")}
	e := New(src, classify.New(classify.DefaultThresholds()))

	_, _, err := e.Extract(context.Background(), "paper.pdf", "p1")
	require.Error(t, err)
}

type reversePrioritizer struct{}

func (reversePrioritizer) Order(_ string, n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = n - 1 - i
	}
	return order
}

func TestExtractHonorsPrioritizer(t *testing.T) {
	doc := &fakeDoc{pages: [][]image.Image{
		{acceptable()},
		{rejectable()},
		{acceptable()},
	}}
	e, _ := newExtractor(doc)
	e.WithPrioritizer(reversePrioritizer{})

	rec, _, err := e.Extract(context.Background(), "paper.pdf", "p1")
	require.NoError(t, err)
	require.Equal(t, 2, rec.Image.PageIndex)
	require.Equal(t, []int{2}, doc.scanned)
}

func TestExtractRecordCarriesDimensions(t *testing.T) {
	doc := &fakeDoc{pages: [][]image.Image{{acceptable()}}}
	e, _ := newExtractor(doc)

	rec, _, err := e.Extract(context.Background(), "paper.pdf", "p1")
	require.NoError(t, err)
	require.Equal(t, models.CandidateImage{
		PaperID:    "p1",
		PageIndex:  0,
		ImageIndex: 0,
		Width:      600,
		Height:     400,
	}, rec.Image)
}
