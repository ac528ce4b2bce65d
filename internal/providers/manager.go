package providers

import (
	"fmt"
	"strings"

	"diagbench/internal/config"
)

type NamedVisionProvider struct {
	Ref      ProviderRef
	Provider VisionProvider
}

type NamedImageGenProvider struct {
	Ref      ProviderRef
	Provider ImageGenProvider
}

// Manager holds the configured provider chains for both model stages. Order
// in the chain is failover preference, with mock entries always sorted last
// so a real endpoint is tried first when both are configured.
type Manager struct {
	vision   []NamedVisionProvider
	imageGen []NamedImageGenProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.VisionProviders) {
		p, err := buildProvider(ref)
		if err != nil {
			return nil, err
		}
		vp, ok := p.(VisionProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support image understanding", ref.Raw)
		}
		m.vision = append(m.vision, NamedVisionProvider{Ref: ref, Provider: vp})
	}
	for _, ref := range ParseProviderList(cfg.ImageGenProviders) {
		p, err := buildProvider(ref)
		if err != nil {
			return nil, err
		}
		gp, ok := p.(ImageGenProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support image generation", ref.Raw)
		}
		m.imageGen = append(m.imageGen, NamedImageGenProvider{Ref: ref, Provider: gp})
	}
	if len(m.vision) == 0 {
		m.vision = []NamedVisionProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()}}
	}
	if len(m.imageGen) == 0 {
		m.imageGen = []NamedImageGenProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()}}
	}
	return m, nil
}

func (m *Manager) VisionByIndex(i int) (VisionProvider, ProviderRef) {
	if i < 0 || i >= len(m.vision) {
		i = 0
	}
	return m.vision[i].Provider, m.vision[i].Ref
}

func (m *Manager) ImageGenByIndex(i int) (ImageGenProvider, ProviderRef) {
	if i < 0 || i >= len(m.imageGen) {
		i = 0
	}
	return m.imageGen[i].Provider, m.imageGen[i].Ref
}

func (m *Manager) VisionCount() int {
	return len(m.vision)
}

func (m *Manager) ImageGenCount() int {
	return len(m.imageGen)
}

func (m *Manager) PreferredVisionOrder() []int {
	return preferredOrder(len(m.vision), func(i int) string { return strings.ToLower(m.vision[i].Ref.Name) })
}

func (m *Manager) PreferredImageGenOrder() []int {
	return preferredOrder(len(m.imageGen), func(i int) string { return strings.ToLower(m.imageGen[i].Ref.Name) })
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(), nil
	case "openrouter":
		return NewOpenRouterProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
