package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		in   string
		want ErrorType
	}{
		{"insufficient_quota for key", ErrorQuota},
		{"you have run out of credits", ErrorQuota},
		{"429 too many requests", ErrorRate},
		{"rate limit exceeded", ErrorRate},
		{"request timeout", ErrorTransient},
		{"service temporarily unavailable", ErrorTransient},
		{"openrouter error 503: upstream", ErrorTransient},
		{"invalid model name", ErrorPermanent},
		{"write generated image: disk full", ErrorPermanent},
	}
	for _, c := range cases {
		if got := ClassifyError(errors.New(c.in)); got != c.want {
			t.Fatalf("ClassifyError(%q) = %s, want %s", c.in, got, c.want)
		}
	}
	if got := ClassifyError(nil); got != "" {
		t.Fatalf("nil error should classify empty, got %s", got)
	}
}
