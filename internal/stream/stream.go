package stream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"diagbench/internal/models"
)

// ErrExhausted signals that every topic pool has been drained.
var ErrExhausted = errors.New("candidate stream exhausted")

// Source fetches the candidate pool for one topic category.
type Source interface {
	Fetch(ctx context.Context, category string) ([]models.PaperCandidate, error)
}

// Stream yields candidates lazily across topic pools. Pools are fetched one at
// a time, only when the previous pool runs dry. Category order and in-pool
// order are shuffled from a fixed seed so a run is reproducible, and a
// candidate is never yielded twice even when categories overlap.
type Stream struct {
	source    Source
	pending   []string
	rng       *rand.Rand
	buf       []models.PaperCandidate
	seen      map[string]struct{}
	fetchErrs []error
}

func New(source Source, categories []string, seed int64) *Stream {
	rng := rand.New(rand.NewSource(seed))
	pending := append([]string(nil), categories...)
	rng.Shuffle(len(pending), func(i, j int) {
		pending[i], pending[j] = pending[j], pending[i]
	})
	return &Stream{
		source:  source,
		pending: pending,
		rng:     rng,
		seen:    map[string]struct{}{},
	}
}

// Next returns the next candidate, fetching further pools as needed. Returns
// ErrExhausted once every category has been drained. A category whose fetch
// fails is skipped, not fatal; the error is kept for the run report.
func (s *Stream) Next(ctx context.Context) (models.PaperCandidate, error) {
	for {
		if len(s.buf) > 0 {
			c := s.buf[0]
			s.buf = s.buf[1:]
			return c, nil
		}
		if len(s.pending) == 0 {
			return models.PaperCandidate{}, ErrExhausted
		}
		category := s.pending[0]
		s.pending = s.pending[1:]
		pool, err := s.source.Fetch(ctx, category)
		if err != nil {
			s.fetchErrs = append(s.fetchErrs, fmt.Errorf("fetch pool %s: %w", category, err))
			continue
		}
		s.fill(category, pool)
	}
}

// Drain pulls every remaining candidate, preserving yield order. Used when the
// full candidate list has to be materialized in one call.
func (s *Stream) Drain(ctx context.Context) ([]models.PaperCandidate, error) {
	var out []models.PaperCandidate
	for {
		c, err := s.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}

// FetchErrors reports the pools that could not be fetched during the run.
func (s *Stream) FetchErrors() []error {
	return s.fetchErrs
}

func (s *Stream) fill(category string, pool []models.PaperCandidate) {
	fresh := make([]models.PaperCandidate, 0, len(pool))
	for _, c := range pool {
		if c.SourceCategory == "" {
			c.SourceCategory = category
		}
		key := candidateKey(c)
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		fresh = append(fresh, c)
	}
	s.rng.Shuffle(len(fresh), func(i, j int) {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	})
	s.buf = fresh
}

// candidateKey identifies a candidate across pools. External IDs win when
// present; otherwise the normalized title, since cross-listed arXiv papers
// appear under several categories with the same title.
func candidateKey(c models.PaperCandidate) string {
	if c.ExternalID != "" {
		return "id:" + c.ExternalID
	}
	return "title:" + strings.ToLower(strings.Join(strings.Fields(c.Title), " "))
}
