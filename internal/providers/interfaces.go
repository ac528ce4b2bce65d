package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type VisionRequest struct {
	ImagePNG    []byte `json:"image_png"`
	Instruction string `json:"instruction"`
	NumPrompts  int    `json:"num_prompts"`
}

type VisionResponse struct {
	Text string `json:"text"`
}

type ImageGenRequest struct {
	Prompt string `json:"prompt"`
}

type ImageGenResponse struct {
	ImagePNG []byte `json:"image_png"`
}

// VisionProvider turns a diagram image into free-form prompt text.
type VisionProvider interface {
	ImageToText(ctx context.Context, req VisionRequest) (VisionResponse, ProviderInfo, error)
}

// ImageGenProvider renders one prompt into an image.
type ImageGenProvider interface {
	TextToImage(ctx context.Context, req ImageGenRequest) (ImageGenResponse, ProviderInfo, error)
}
