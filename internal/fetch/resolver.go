package fetch

import (
	"context"
	"fmt"

	"diagbench/internal/collectors"
	"diagbench/internal/models"
	"diagbench/internal/util"
)

// Info is the resolved identity of a candidate: everything needed to download
// and label its paper.
type Info struct {
	ExternalID string   `json:"external_id"`
	PDFURL     string   `json:"pdf_url"`
	Abstract   string   `json:"abstract"`
	Authors    []string `json:"authors"`
}

// Resolver fills in a candidate's missing identity fields.
type Resolver interface {
	Resolve(ctx context.Context, c models.PaperCandidate) (Info, error)
}

// ArxivResolver resolves candidates against the arXiv Atom API, by ID when the
// collector already supplied one and by title search otherwise.
type ArxivResolver struct {
	api *collectors.APICollector
}

func NewArxivResolver(api *collectors.APICollector) *ArxivResolver {
	return &ArxivResolver{api: api}
}

func (r *ArxivResolver) Resolve(ctx context.Context, c models.PaperCandidate) (Info, error) {
	var (
		entry *collectors.Entry
		err   error
	)
	if c.ExternalID != "" {
		entry, err = r.api.LookupID(ctx, c.ExternalID)
	} else {
		entry, err = r.api.SearchTitle(ctx, c.Title)
	}
	if err != nil {
		return Info{}, fmt.Errorf("resolve %q: %w", c.Title, err)
	}
	if entry == nil {
		return Info{}, fmt.Errorf("%w: no arxiv record for %q", util.ErrPermanent, c.Title)
	}

	info := Info{
		ExternalID: entry.ExternalID,
		PDFURL:     entry.PDFURL,
		Abstract:   entry.Abstract,
		Authors:    entry.Authors,
	}
	if info.PDFURL == "" {
		info.PDFURL = c.PDFURL
	}
	if info.PDFURL == "" {
		return Info{}, fmt.Errorf("%w: no pdf url for %q", util.ErrPermanent, c.Title)
	}
	return info, nil
}
