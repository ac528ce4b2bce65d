package collectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"diagbench/internal/models"
	"diagbench/internal/util"
)

// ListingCollector scrapes the arxiv.org HTML listing pages instead of the
// Atom API. Used as a fallback pool source when the API is throttling, and
// for venue pages that have no API.
type ListingCollector struct {
	client   *http.Client
	baseURL  string
	year     int
	pageSize int
	maxPages int
}

func NewListingCollector(client *http.Client, year int) *ListingCollector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ListingCollector{
		client:   client,
		baseURL:  "https://arxiv.org",
		year:     year,
		pageSize: 200,
		maxPages: 10,
	}
}

func (l *ListingCollector) WithBaseURL(base string) *ListingCollector {
	l.baseURL = strings.TrimSuffix(base, "/")
	return l
}

// Fetch walks the category's listing pages until a short page or the page cap.
func (l *ListingCollector) Fetch(ctx context.Context, category string) ([]models.PaperCandidate, error) {
	var out []models.PaperCandidate
	seen := map[string]struct{}{}

	for page := 0; page < l.maxPages; page++ {
		pageURL := l.pageURL(category, page*l.pageSize)
		doc, err := l.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s page %d: %w", category, page, err)
		}

		batch := l.extractEntries(doc, category)
		for _, c := range batch {
			if _, dup := seen[c.ExternalID]; dup {
				continue
			}
			seen[c.ExternalID] = struct{}{}
			out = append(out, c)
		}
		if len(batch) < l.pageSize {
			break
		}
	}
	return out, nil
}

func (l *ListingCollector) pageURL(category string, skip int) string {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("show", strconv.Itoa(l.pageSize))
	return fmt.Sprintf("%s/list/%s/%d?%s", l.baseURL, category, l.year, q.Encode())
}

func (l *ListingCollector) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "diagbench/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: listing returned %s", util.ErrTransient, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return doc, nil
}

func (l *ListingCollector) extractEntries(doc *goquery.Document, category string) []models.PaperCandidate {
	var out []models.PaperCandidate
	doc.Find("dl > dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.Next()

		link := dt.Find(`a[href*="/abs/"]`).First()
		href, _ := link.Attr("href")
		id := strings.TrimPrefix(href, "/abs/")
		if id == "" {
			id = strings.TrimSpace(strings.TrimPrefix(link.Text(), "arXiv:"))
		}
		if id == "" {
			return
		}

		title := strings.TrimSpace(dd.Find(".list-title").First().Text())
		title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))
		if title == "" {
			return
		}

		out = append(out, models.PaperCandidate{
			SourceCategory: category,
			Title:          strings.Join(strings.Fields(title), " "),
			ExternalID:     id,
			PDFURL:         fmt.Sprintf("%s/pdf/%s", l.baseURL, id),
			Status:         models.StatusCandidate,
		})
	})
	return out
}
