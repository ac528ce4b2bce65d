package classify

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"diagbench/internal/models"
)

// Reason tags recorded for the first failing gate.
const (
	ReasonDecodeError    = "decode_error"
	ReasonTooSmall       = "too_small"
	ReasonTooLarge       = "too_large"
	ReasonExtremeAspect  = "extreme_aspect"
	ReasonPaletteLow     = "palette_low"
	ReasonPaletteHigh    = "palette_high"
	ReasonDarkBackground = "dark_background"
)

// Thresholds configure the classifier gates. All fields have working defaults
// via DefaultThresholds.
type Thresholds struct {
	MinDim           int
	MaxDim           int
	MaxAspectRatio   float64
	MinPaletteColors int
	MaxPaletteColors int
	MinLightFraction float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDim:           200,
		MaxDim:           4000,
		MaxAspectRatio:   5.0,
		MinPaletteColors: 8,
		MaxPaletteColors: 512,
		MinLightFraction: 0.45,
	}
}

// Classifier decides whether a candidate image looks like a schematic diagram
// rather than a photo, plot, or decorative asset. It is a pure function of the
// pixel data: no I/O, deterministic, single O(width*height) pass.
type Classifier struct {
	thresholds Thresholds
	gates      []gate
}

// imageStats holds everything the gates need, computed in one pixel pass.
type imageStats struct {
	width, height int
	paletteSize   int
	lightFraction float64
}

// gate is one named accept condition. Gates run in order with early exit; the
// first failure supplies the reason tag. The conjunctive policy trades recall
// for precision: a missed diagram costs nothing because the extractor keeps
// scanning, while a false accept consumes a collection slot.
type gate struct {
	name string
	pass func(imageStats) (bool, string)
}

func New(t Thresholds) *Classifier {
	c := &Classifier{thresholds: t}
	c.gates = []gate{
		{name: "size", pass: c.sizeGate},
		{name: "aspect", pass: c.aspectGate},
		{name: "palette", pass: c.paletteGate},
		{name: "background", pass: c.backgroundGate},
	}
	return c
}

// ClassifyBytes decodes and classifies raw image bytes. Malformed data is a
// reject with reason decode_error, never an error.
func (c *Classifier) ClassifyBytes(data []byte) models.ClassificationResult {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.ClassificationResult{Decision: models.DecisionReject, ReasonTag: ReasonDecodeError}
	}
	return c.Classify(img)
}

// Classify scores a decoded image and returns accept or reject with the first
// failing gate as the reason tag.
func (c *Classifier) Classify(img image.Image) models.ClassificationResult {
	stats := computeStats(img)
	passed := 0
	for _, g := range c.gates {
		ok, reason := g.pass(stats)
		if !ok {
			return models.ClassificationResult{
				Decision:  models.DecisionReject,
				Score:     float64(passed) / float64(len(c.gates)),
				ReasonTag: reason,
			}
		}
		passed++
	}
	return models.ClassificationResult{Decision: models.DecisionAccept, Score: 1.0}
}

func (c *Classifier) sizeGate(s imageStats) (bool, string) {
	if s.width < c.thresholds.MinDim || s.height < c.thresholds.MinDim {
		return false, ReasonTooSmall
	}
	if s.width > c.thresholds.MaxDim || s.height > c.thresholds.MaxDim {
		return false, ReasonTooLarge
	}
	return true, ""
}

func (c *Classifier) aspectGate(s imageStats) (bool, string) {
	w, h := float64(s.width), float64(s.height)
	if w/h > c.thresholds.MaxAspectRatio || h/w > c.thresholds.MaxAspectRatio {
		return false, ReasonExtremeAspect
	}
	return true, ""
}

func (c *Classifier) paletteGate(s imageStats) (bool, string) {
	if s.paletteSize < c.thresholds.MinPaletteColors {
		return false, ReasonPaletteLow
	}
	if s.paletteSize > c.thresholds.MaxPaletteColors {
		return false, ReasonPaletteHigh
	}
	return true, ""
}

func (c *Classifier) backgroundGate(s imageStats) (bool, string) {
	if s.lightFraction < c.thresholds.MinLightFraction {
		return false, ReasonDarkBackground
	}
	return true, ""
}

// lightLuma is the 8-bit luma above which a pixel counts as background.
const lightLuma = 200

func computeStats(img image.Image) imageStats {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return imageStats{}
	}

	// Quantize to 4 bits per channel: 4096 buckets is enough to separate
	// flat-color diagrams from photographic gradients.
	seen := make(map[uint16]struct{}, 256)
	light := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			r8, g8, b8 := uint32(r>>8), uint32(g>>8), uint32(bl>>8)
			key := uint16(r8>>4)<<8 | uint16(g8>>4)<<4 | uint16(b8>>4)
			seen[key] = struct{}{}
			// Integer Rec.601 luma.
			luma := (299*r8 + 587*g8 + 114*b8) / 1000
			if luma >= lightLuma {
				light++
			}
		}
	}
	return imageStats{
		width:         w,
		height:        h,
		paletteSize:   len(seen),
		lightFraction: float64(light) / float64(w*h),
	}
}
