package pdfimages

import (
	"image"
	"image/draw"
)

// Segmenter splits a rendered page into candidate figure regions.
type Segmenter interface {
	Segment(page image.Image) []image.Image
}

// BandSegmenter finds horizontal ink bands: contiguous runs of rows holding
// non-background pixels, separated by whitespace gutters. Papers are laid out
// vertically, so bands line up with blocks of text, figures, and tables; the
// classifier downstream separates the figures from the rest. Bands are
// returned top to bottom, matching in-page reading order.
type BandSegmenter struct {
	// MinBandHeight drops bands too short to be a figure (caption lines,
	// single text rows).
	MinBandHeight int
	// MaxGapRows merges bands separated by fewer than this many blank rows,
	// so a figure with internal whitespace stays one region.
	MaxGapRows int
	// InkRowFraction is the minimum fraction of non-background pixels for a
	// row to count as ink.
	InkRowFraction float64
}

func NewBandSegmenter() *BandSegmenter {
	return &BandSegmenter{
		MinBandHeight:  200,
		MaxGapRows:     24,
		InkRowFraction: 0.004,
	}
}

// backgroundLuma is the 8-bit luma at or above which a pixel counts as page
// background.
const backgroundLuma = 245

func (s *BandSegmenter) Segment(page image.Image) []image.Image {
	rgba := toRGBA(page)
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	inkRows := make([]bool, h)
	for y := 0; y < h; y++ {
		ink := 0
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			if !isBackground(row[x*4], row[x*4+1], row[x*4+2]) {
				ink++
			}
		}
		inkRows[y] = float64(ink)/float64(w) >= s.InkRowFraction
	}

	var out []image.Image
	for _, band := range s.bands(inkRows) {
		region := s.trimColumns(rgba, band.top, band.bottom)
		if region != nil {
			out = append(out, region)
		}
	}
	return out
}

type rowBand struct {
	top, bottom int
}

// bands groups ink rows into regions, bridging gaps up to MaxGapRows and
// dropping regions shorter than MinBandHeight.
func (s *BandSegmenter) bands(inkRows []bool) []rowBand {
	var out []rowBand
	top, gap := -1, 0
	flush := func(bottom int) {
		if top >= 0 && bottom-top >= s.MinBandHeight {
			out = append(out, rowBand{top: top, bottom: bottom})
		}
		top = -1
	}
	for y, ink := range inkRows {
		switch {
		case ink && top < 0:
			top, gap = y, 0
		case ink:
			gap = 0
		case top >= 0:
			gap++
			if gap > s.MaxGapRows {
				flush(y - gap + 1)
			}
		}
	}
	if top >= 0 {
		flush(len(inkRows))
	}
	return out
}

// trimColumns crops a band to its inked column span, dropping the page
// margins.
func (s *BandSegmenter) trimColumns(rgba *image.RGBA, top, bottom int) image.Image {
	b := rgba.Bounds()
	w := b.Dx()
	left, right := w, -1
	for y := top; y < bottom; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			if isBackground(row[x*4], row[x*4+1], row[x*4+2]) {
				continue
			}
			if x < left {
				left = x
			}
			if x > right {
				right = x
			}
		}
	}
	if right < left {
		return nil
	}
	return rgba.SubImage(image.Rect(left, top, right+1, bottom))
}

func isBackground(r, g, b uint8) bool {
	luma := (299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000
	return luma >= backgroundLuma
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
