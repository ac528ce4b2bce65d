package collectors

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"diagbench/internal/models"
	"diagbench/internal/util"
)

const defaultAPIBaseURL = "http://export.arxiv.org/api/query"

// Entry is one paper from the arXiv Atom API, with identifiers already
// normalized (version suffix stripped, PDF link resolved).
type Entry struct {
	ExternalID string
	Title      string
	Abstract   string
	Authors    []string
	AbsURL     string
	PDFURL     string
	Published  string
}

// APICollector pulls candidate pools from the arXiv Atom API, one category at
// a time, paging until maxResults or the category runs out.
type APICollector struct {
	client     *http.Client
	baseURL    string
	year       int
	maxResults int
	pageSize   int
}

func NewAPICollector(client *http.Client, year, maxResults int) *APICollector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	pageSize := maxResults
	if pageSize > 1000 {
		pageSize = 1000
	}
	return &APICollector{
		client:     client,
		baseURL:    defaultAPIBaseURL,
		year:       year,
		maxResults: maxResults,
		pageSize:   pageSize,
	}
}

// WithBaseURL points the collector at a different endpoint. Tests use this
// with an httptest server.
func (c *APICollector) WithBaseURL(base string) *APICollector {
	c.baseURL = base
	return c
}

// Fetch returns the candidate pool for one category, scoped to the configured
// submission year.
func (c *APICollector) Fetch(ctx context.Context, category string) ([]models.PaperCandidate, error) {
	query := fmt.Sprintf("cat:%s AND submittedDate:[%d0101 TO %d1231]", category, c.year, c.year)

	var out []models.PaperCandidate
	for start := 0; start < c.maxResults; start += c.pageSize {
		batch, err := c.Query(ctx, query, start, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("category %s offset %d: %w", category, start, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			out = append(out, models.PaperCandidate{
				SourceCategory: category,
				Title:          e.Title,
				ExternalID:     e.ExternalID,
				PDFURL:         e.PDFURL,
				PublishedDate:  e.Published,
				Status:         models.StatusCandidate,
			})
		}
		if len(batch) < c.pageSize {
			break
		}
	}
	return out, nil
}

// SearchTitle looks a paper up by exact-ish title and returns the best match,
// or nil when the API has no result for it.
func (c *APICollector) SearchTitle(ctx context.Context, title string) (*Entry, error) {
	normalized := strings.Join(strings.Fields(title), " ")
	entries, err := c.Query(ctx, fmt.Sprintf(`ti:"%s"`, normalized), 0, 5)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if strings.EqualFold(normalizeTitle(e.Title), normalizeTitle(normalized)) {
			return &entries[i], nil
		}
	}
	if len(entries) > 0 {
		// Title quoting on the API is fuzzy; take the top hit when nothing
		// matches exactly.
		return &entries[0], nil
	}
	return nil, nil
}

// LookupID fetches a single entry by its arXiv identifier.
func (c *APICollector) LookupID(ctx context.Context, externalID string) (*Entry, error) {
	entries, err := c.Query(ctx, "id:"+externalID, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Query runs one raw Atom API request.
func (c *APICollector) Query(ctx context.Context, searchQuery string, start, max int) ([]Entry, error) {
	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(max))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "diagbench/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: arxiv api returned %s", util.ErrTransient, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", util.ErrTransient, err)
	}
	return ParseAtomFeed(body)
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
	} `xml:"link"`
}

// ParseAtomFeed decodes an Atom response into normalized entries. Entries
// without a title or id are skipped rather than failing the whole feed.
func ParseAtomFeed(data []byte) ([]Entry, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse atom feed: %w", err)
	}

	out := make([]Entry, 0, len(feed.Entries))
	for _, raw := range feed.Entries {
		title := strings.Join(strings.Fields(raw.Title), " ")
		absURL := strings.TrimSpace(raw.ID)
		if title == "" || absURL == "" {
			continue
		}
		e := Entry{
			ExternalID: externalIDFromAbsURL(absURL),
			Title:      title,
			Abstract:   strings.TrimSpace(raw.Summary),
			AbsURL:     absURL,
			Published:  strings.TrimSpace(raw.Published),
		}
		for _, a := range raw.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				e.Authors = append(e.Authors, name)
			}
		}
		for _, l := range raw.Links {
			if l.Title == "pdf" {
				e.PDFURL = l.Href
			}
		}
		if e.PDFURL == "" && e.ExternalID != "" {
			e.PDFURL = "https://arxiv.org/pdf/" + e.ExternalID
		}
		out = append(out, e)
	}
	return out, nil
}

// externalIDFromAbsURL turns "http://arxiv.org/abs/2401.01234v2" into
// "2401.01234".
func externalIDFromAbsURL(absURL string) string {
	idx := strings.Index(absURL, "/abs/")
	if idx < 0 {
		return ""
	}
	id := absURL[idx+len("/abs/"):]
	if v := strings.LastIndex(id, "v"); v > 0 {
		if _, err := strconv.Atoi(id[v+1:]); err == nil {
			id = id[:v]
		}
	}
	return id
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
