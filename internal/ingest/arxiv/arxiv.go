package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mohammad-safakhou/sift/internal/ingest"
)

const (
	listingBaseURL = "https://export.arxiv.org/list"
	absBaseURL     = "https://arxiv.org"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// Scanner crawls arXiv category listing pages and extracts recent
// papers for the pipeline's acquisition stage.
type Scanner struct {
	client     *http.Client
	categories []string
	maxResults int
}

var _ ingest.Source = (*Scanner)(nil)

// NewScanner wires an HTTP client; maxResults bounds items per category.
func NewScanner(client *http.Client, categories []string, maxResults int) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Scanner{client: client, categories: categories, maxResults: maxResults}
}

// Name identifies the source.
func (s *Scanner) Name() string { return "arxiv" }

// Fetch walks each configured category's recent listing and returns the
// extracted papers. Duplicate URLs across categories are collapsed.
func (s *Scanner) Fetch(ctx context.Context) ([]ingest.Item, error) {
	if len(s.categories) == 0 {
		return nil, fmt.Errorf("no arxiv categories configured")
	}

	seen := map[string]struct{}{}
	var results []ingest.Item
	for _, cat := range s.categories {
		pageURL, err := buildListingURL(cat, s.maxResults)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}
		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}
		for _, item := range extractItems(doc, cat) {
			if _, ok := seen[item.URL]; ok {
				continue
			}
			seen[item.URL] = struct{}{}
			results = append(results, item)
		}
	}
	return results, nil
}

func (s *Scanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "sift/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractItems(doc *goquery.Document, category string) []ingest.Item {
	listDate := time.Now().UTC()
	if match := dateExpr.FindString(doc.Find("h3").First().Text()); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			listDate = parsed
		}
	}

	var collected []ingest.Item
	doc.Find("dl > dt").Each(func(i int, dt *goquery.Selection) {
		dd := dt.Next()
		item, ok := parseEntry(dt, dd, category, listDate)
		if !ok {
			return
		}
		collected = append(collected, item)
	})
	return collected
}

func parseEntry(dt, dd *goquery.Selection, category string, listDate time.Time) (ingest.Item, bool) {
	link := dt.Find(`a[href*="/abs/"]`).First()
	href, _ := link.Attr("href")
	if href == "" {
		return ingest.Item{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = absBaseURL + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))
	if title == "" {
		return ingest.Item{}, false
	}

	// the title div carries the mathjax class too, so scope to the
	// abstract paragraph
	abstract := strings.TrimSpace(dd.Find("p.mathjax").First().Text())
	abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(i int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	return ingest.Item{
		Source:      "arxiv/" + category,
		Type:        "research",
		Title:       title,
		URL:         href,
		PublishedAt: listDate,
		Body:        abstract,
		Authors:     authors,
	}, true
}

func buildListingURL(category string, show int) (string, error) {
	parsed, err := url.Parse(fmt.Sprintf("%s/%s/recent", listingBaseURL, category))
	if err != nil {
		return "", fmt.Errorf("invalid category %s: %w", category, err)
	}
	query := parsed.Query()
	query.Set("show", strconv.Itoa(show))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
