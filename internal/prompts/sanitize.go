package prompts

import (
	"fmt"
	"regexp"
	"strings"

	"diagbench/internal/util"
)

// InsufficientPromptsError reports that fewer valid prompts than requested
// survived filtering. The caller retries the model once, then fails the paper.
type InsufficientPromptsError struct {
	Want int
	Got  int
}

func (e *InsufficientPromptsError) Error() string {
	return fmt.Sprintf("insufficient prompts: recovered %d of %d", e.Got, e.Want)
}

func (e *InsufficientPromptsError) Unwrap() error {
	return util.ErrInsufficientPrompts
}

// A segment shorter than this can only be a preamble or noise when it carries
// instructional phrasing; genuine prompts are long descriptive sentences.
const preambleMaxLen = 150

// Segments below this length carry no usable prompt content.
const minPromptLen = 12

// instructionPhrases are the meta-referential fragments models wrap around a
// requested list. Any short segment containing one is discarded.
var instructionPhrases = []string{
	"here are",
	"the following",
	"below are",
	"i'll provide",
	"i will provide",
	"these prompts",
	"these descriptions",
	"detailed prompts",
	"prompts to recreate",
	"prompts that could be used",
	"each prompt should",
	"return the prompts",
	"focusing on",
	"scientific visualization style",
	"format:",
	"important:",
	"note:",
}

// instructionStarters mark a segment as preamble regardless of length.
var instructionStarters = []string{
	"here are",
	"here is",
	"the following",
	"below are",
	"i'll provide",
	"i will provide",
	"these prompts",
	"these descriptions",
	"sure,",
	"certainly",
}

// ordinalMarker strips leading list markers: "1.", "2)", "3:", "Prompt 4:",
// "**Prompt 5**", bullets.
var ordinalMarker = regexp.MustCompile(`(?i)^\s*(?:\*{0,2}prompt\s+\d+\*{0,2}\s*[:.)-]?|\d+\s*[.):]|[-*•])\s*`)

// Sanitize extracts exactly n clean prompt strings from free-form model
// output. It is a pure function of (raw, n) so unit tests can pin exact
// outputs. Under-count returns *InsufficientPromptsError; over-count keeps the
// first n in original order.
func Sanitize(raw string, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("prompt count must be positive, got %d", n)
	}

	segments := cleanAll(splitParagraphs(raw))
	if len(segments) < n {
		// A single paragraph holding the whole numbered list is common;
		// re-split on line boundaries.
		segments = cleanAll(splitLines(raw))
	}

	// Filtering is applied again after the final cleanup because a preamble
	// fragment can survive one split strategy but not another.
	out := make([]string, 0, len(segments))
	seen := map[string]struct{}{}
	for _, s := range segments {
		if isPreamble(s) || len([]rune(s)) < minPromptLen {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if len(out) < n {
		return nil, &InsufficientPromptsError{Want: n, Got: len(out)}
	}
	return out[:n], nil
}

func cleanAll(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		s = cleanSegment(s)
		if s == "" || isPreamble(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// cleanSegment strips the ordinal marker, surrounding quotes, and control
// characters from one candidate segment.
func cleanSegment(s string) string {
	s = util.SanitizeText(s)
	s = ordinalMarker.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`+"`")
	return strings.TrimSpace(s)
}

func isPreamble(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return true
	}
	for _, starter := range instructionStarters {
		if strings.HasPrefix(lower, starter) {
			return true
		}
	}
	if len([]rune(s)) < preambleMaxLen {
		for _, phrase := range instructionPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}

func splitParagraphs(raw string) []string {
	parts := regexp.MustCompile(`\n\s*\n`).Split(raw, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		// Join the paragraph's lines so multi-line prompts become one string.
		joined := strings.Join(strings.Fields(strings.ReplaceAll(p, "\n", " ")), " ")
		if joined != "" {
			out = append(out, joined)
		}
	}
	return out
}

// splitLines treats every non-empty line as its own candidate. Used only when
// the paragraph split came up short, which means the response packed the whole
// list into one block with one prompt per line.
func splitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
