package classify

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"diagbench/internal/models"
)

// diagramImage builds a synthetic schematic: white background with a row of
// distinctly colored boxes, the shape the accept band is tuned for.
func diagramImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	colors := []color.RGBA{
		{200, 30, 30, 255}, {30, 200, 30, 255}, {30, 30, 200, 255},
		{200, 200, 30, 255}, {30, 200, 200, 255}, {200, 30, 200, 255},
		{120, 60, 10, 255}, {10, 60, 120, 255}, {0, 0, 0, 255},
		{100, 100, 100, 255},
	}
	boxW := w / (len(colors) + 2)
	for i, c := range colors {
		x0 := 10 + i*boxW
		for y := h / 4; y < h/2; y++ {
			for x := x0; x < x0+boxW/2; x++ {
				img.Set(x, y, c)
			}
		}
	}
	return img
}

// noisyImage fills every pixel with a different quantized color, the palette
// signature of photographic content.
func noisyImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7 % 256), uint8(y * 13 % 256), uint8((x + y) * 3 % 256), 255})
		}
	}
	return img
}

func flatImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestClassifyAcceptsDiagram(t *testing.T) {
	c := New(DefaultThresholds())
	res := c.Classify(diagramImage(600, 400))
	require.Equal(t, models.DecisionAccept, res.Decision)
	require.Empty(t, res.ReasonTag)
	require.Equal(t, 1.0, res.Score)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New(DefaultThresholds())
	img := diagramImage(600, 400)
	first := c.Classify(img)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, c.Classify(img))
	}
}

func TestClassifyRejectsTinyImage(t *testing.T) {
	c := New(DefaultThresholds())
	res := c.Classify(diagramImage(64, 64))
	require.Equal(t, models.DecisionReject, res.Decision)
	require.Equal(t, ReasonTooSmall, res.ReasonTag)
}

func TestClassifyRejectsOversizeImage(t *testing.T) {
	c := New(DefaultThresholds())
	res := c.Classify(flatImage(4200, 500, color.RGBA{255, 255, 255, 255}))
	require.Equal(t, models.DecisionReject, res.Decision)
	require.Equal(t, ReasonTooLarge, res.ReasonTag)
}

func TestClassifyRejectsExtremeAspectRegardlessOfOtherGates(t *testing.T) {
	// A 50:1 banner that would pass every other gate must still be rejected.
	c := New(DefaultThresholds())
	img := diagramImage(4000, 80)
	res := c.Classify(img)
	require.Equal(t, models.DecisionReject, res.Decision)
	// The size gate fires first on the 80px height; widen to clear it.
	img = diagramImage(4000, 200)
	res = c.Classify(img)
	require.Equal(t, models.DecisionReject, res.Decision)
	require.Equal(t, ReasonExtremeAspect, res.ReasonTag)
}

func TestClassifyRejectsFlatImage(t *testing.T) {
	c := New(DefaultThresholds())
	res := c.Classify(flatImage(600, 400, color.RGBA{255, 255, 255, 255}))
	require.Equal(t, models.DecisionReject, res.Decision)
	require.Equal(t, ReasonPaletteLow, res.ReasonTag)
}

func TestClassifyRejectsPhotographicPalette(t *testing.T) {
	c := New(DefaultThresholds())
	res := c.Classify(noisyImage(600, 400))
	require.Equal(t, models.DecisionReject, res.Decision)
	require.Equal(t, ReasonPaletteHigh, res.ReasonTag)
}

func TestClassifyRejectsDarkBackground(t *testing.T) {
	c := New(Thresholds{
		MinDim:           200,
		MaxDim:           4000,
		MaxAspectRatio:   5.0,
		MinPaletteColors: 1,
		MaxPaletteColors: 4096,
		MinLightFraction: 0.45,
	})
	res := c.Classify(flatImage(600, 400, color.RGBA{20, 20, 20, 255}))
	require.Equal(t, models.DecisionReject, res.Decision)
	require.Equal(t, ReasonDarkBackground, res.ReasonTag)
}

func TestClassifyBytesDecodesPNG(t *testing.T) {
	c := New(DefaultThresholds())
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, diagramImage(600, 400)))
	res := c.ClassifyBytes(buf.Bytes())
	require.Equal(t, models.DecisionAccept, res.Decision)
}

func TestClassifyBytesMalformedIsRejectNotError(t *testing.T) {
	c := New(DefaultThresholds())
	res := c.ClassifyBytes([]byte("not an image"))
	require.Equal(t, models.DecisionReject, res.Decision)
	require.Equal(t, ReasonDecodeError, res.ReasonTag)
}
