package prompts

import "fmt"

// GenerationPrefix is prepended to every prompt sent to the image generation
// model so outputs land in a consistent technical-illustration style.
const GenerationPrefix = "You are an expert scientific illustrator. Create a clean, publication-quality scientific diagram: "

// VisionInstruction builds the request sent alongside a diagram image, asking
// for exactly n numbered prompts and nothing else. The "no preamble" clause
// reduces, but does not eliminate, conversational wrapping; Sanitize handles
// the rest.
func VisionInstruction(n int) string {
	return fmt.Sprintf(
		"Analyze this scientific diagram and write exactly %d distinct text-to-image prompts that would recreate it. "+
			"Each prompt must fully describe the diagram's layout, components, labels, arrows, and color scheme in one paragraph. "+
			"Number them 1. through %d. Start directly with 1. and output nothing else: no preamble, no commentary, no formatting notes.",
		n, n)
}

// WrapForGeneration applies the illustrator prefix to a sanitized prompt.
func WrapForGeneration(prompt string) string {
	return GenerationPrefix + prompt
}
