package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
)

// MockProvider produces deterministic outputs so the full pipeline runs
// end-to-end without keys: prompt text is derived from the image fingerprint
// and generated images from the prompt fingerprint.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

var mockSubjects = []string{
	"a layered system architecture with labeled components connected by directional arrows",
	"a flowchart of sequential processing stages with decision branches",
	"a block diagram of modules exchanging data over annotated links",
	"a pipeline schematic with numbered stages and a feedback loop",
	"a tree-structured taxonomy with colored leaf nodes",
	"a state machine with labeled transitions between rounded nodes",
}

func (m *MockProvider) ImageToText(ctx context.Context, req VisionRequest) (VisionResponse, ProviderInfo, error) {
	_ = ctx
	n := req.NumPrompts
	if n <= 0 {
		n = 3
	}
	sum := sha256.Sum256(req.ImagePNG)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Here are %d prompts for the diagram:\n", n))
	for i := 0; i < n; i++ {
		subject := mockSubjects[int(sum[i%len(sum)])%len(mockSubjects)]
		fmt.Fprintf(&b, "%d. A scientific illustration of %s, panel %d variant %x, on a white background\n", i+1, subject, i+1, sum[i%len(sum)])
	}
	// The deliberate preamble line above exercises the downstream filter.
	return VisionResponse{Text: b.String()}, ProviderInfo{Name: "mock", Model: "mock-vision-v1", Key: "mock"}, nil
}

func (m *MockProvider) TextToImage(ctx context.Context, req ImageGenRequest) (ImageGenResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-imagegen-v1", Key: "mock"}
	sum := sha256.Sum256([]byte(req.Prompt))

	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	// Three fingerprint-colored boxes so every prompt yields a distinct image.
	for i := 0; i < 3; i++ {
		c := color.RGBA{sum[i*3], sum[i*3+1], sum[i*3+2], 255}
		x0, y0 := 20+70*i, 40+int(sum[i])%120
		for y := y0; y < y0+60 && y < 256; y++ {
			for x := x0; x < x0+60; x++ {
				img.Set(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ImageGenResponse{}, info, err
	}
	return ImageGenResponse{ImagePNG: buf.Bytes()}, info, nil
}
