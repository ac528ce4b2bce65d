package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterProvider drives both model stages through the OpenRouter
// chat-completions API: a vision model reading the diagram and an
// image-preview model rendering prompts.
type OpenRouterProvider struct {
	keyName     string
	apiKey      string
	visionModel string
	imageModel  string
	baseURL     string
	client      *http.Client
}

func NewOpenRouterProvider(keyName string) *OpenRouterProvider {
	return &OpenRouterProvider{
		keyName:     keyName,
		apiKey:      resolveOpenRouterKey(keyName),
		visionModel: "google/gemini-2.0-flash-001",
		imageModel:  "google/gemini-2.5-flash-image-preview",
		baseURL:     openRouterURL,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

// WithBaseURL redirects requests, used by tests with an httptest server.
func (o *OpenRouterProvider) WithBaseURL(base string) *OpenRouterProvider {
	o.baseURL = base
	return o
}

func (o *OpenRouterProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "openrouter", Model: model, Key: o.keyName}
}

func (o *OpenRouterProvider) ImageToText(ctx context.Context, req VisionRequest) (VisionResponse, ProviderInfo, error) {
	info := o.info(o.visionModel)
	if o.apiKey == "" {
		return VisionResponse{}, info, fmt.Errorf("openrouter key missing for alias %q", o.keyName)
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImagePNG)
	payload, _ := json.Marshal(map[string]any{
		"model": o.visionModel,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": req.Instruction},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
	})

	body, err := o.post(ctx, payload)
	if err != nil {
		return VisionResponse{}, info, err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return VisionResponse{}, info, fmt.Errorf("decode vision response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return VisionResponse{}, info, fmt.Errorf("openrouter returned no text for %s", o.visionModel)
	}
	return VisionResponse{Text: parsed.Choices[0].Message.Content}, info, nil
}

func (o *OpenRouterProvider) TextToImage(ctx context.Context, req ImageGenRequest) (ImageGenResponse, ProviderInfo, error) {
	info := o.info(o.imageModel)
	if o.apiKey == "" {
		return ImageGenResponse{}, info, fmt.Errorf("openrouter key missing for alias %q", o.keyName)
	}

	payload, _ := json.Marshal(map[string]any{
		"model": o.imageModel,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"modalities": []string{"image", "text"},
	})

	body, err := o.post(ctx, payload)
	if err != nil {
		return ImageGenResponse{}, info, err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Images []struct {
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"images"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ImageGenResponse{}, info, fmt.Errorf("decode generation response: %w", err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.Images) == 0 {
		return ImageGenResponse{}, info, fmt.Errorf("openrouter returned no image for %s", o.imageModel)
	}

	data, err := decodeDataURL(parsed.Choices[0].Message.Images[0].ImageURL.URL)
	if err != nil {
		return ImageGenResponse{}, info, err
	}
	return ImageGenResponse{ImagePNG: data}, info, nil
}

func (o *OpenRouterProvider) post(ctx context.Context, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("openrouter error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// decodeDataURL unwraps "data:image/png;base64,..." payloads.
func decodeDataURL(url string) ([]byte, error) {
	idx := strings.Index(url, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("image url is not a base64 data url")
	}
	data, err := base64.StdEncoding.DecodeString(url[idx+len("base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	return data, nil
}

func resolveOpenRouterKey(alias string) string {
	if alias != "" {
		if k := os.Getenv("DIAGBENCH_OPENROUTER_KEY_" + strings.ToUpper(alias)); k != "" {
			return k
		}
	}
	return os.Getenv("OPENROUTER_API_KEY")
}
