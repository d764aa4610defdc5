package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"MarketRadar/internal/domain"
	"MarketRadar/internal/ports"
)

const (
	redditBaseURL   = "https://www.reddit.com"
	redditUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxListingBytes = 8 << 20
)

// ErrRateLimited means the feed answered 429; callers should wait longer than usual.
var ErrRateLimited = errors.New("feed rate limited")

// RedditSource reads the newest posts of a set of subreddits from the public JSON listing.
type RedditSource struct {
	client  *http.Client
	baseURL string
}

var _ ports.FeedSource = (*RedditSource)(nil)

// NewRedditSource wires an HTTP client; a nil client gets a 15s timeout.
// An empty baseURL points at reddit.com.
func NewRedditSource(client *http.Client, baseURL string) *RedditSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = redditBaseURL
	}
	return &RedditSource{client: client, baseURL: baseURL}
}

// Name identifies the source inside the registry.
func (r *RedditSource) Name() string {
	return "reddit"
}

// Fetch returns one page of the combined "new" listing in feed order.
func (r *RedditSource) Fetch(ctx context.Context, subjects []string, limit int) ([]domain.FeedItem, error) {
	if len(subjects) == 0 {
		return nil, errors.New("no subreddits configured")
	}

	pageURL, err := buildListingURL(r.baseURL, subjects, limit)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", redditUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}

	return parseListing(body)
}

func parseListing(body []byte) ([]domain.FeedItem, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed listing payload")
	}
	children := gjson.GetBytes(body, "data.children")
	if !children.IsArray() {
		return nil, errors.New("listing has no data.children array")
	}

	var items []domain.FeedItem
	children.ForEach(func(_, child gjson.Result) bool {
		if item, ok := parsePost(child.Get("data")); ok {
			items = append(items, item)
		}
		return true
	})
	return items, nil
}

func parsePost(post gjson.Result) (domain.FeedItem, bool) {
	id := strings.TrimSpace(post.Get("id").String())
	if id == "" {
		return domain.FeedItem{}, false
	}

	body := post.Get("selftext").String()
	if strings.TrimSpace(body) == "" {
		body = htmlToText(post.Get("selftext_html").String())
	}

	permalink := post.Get("permalink").String()
	if permalink != "" && !strings.HasPrefix(permalink, "http") {
		permalink = redditBaseURL + permalink
	}

	return domain.FeedItem{
		ID:        id,
		Title:     post.Get("title").String(),
		Body:      body,
		Permalink: permalink,
	}, true
}

// htmlToText flattens Reddit's escaped selftext_html into plain text.
func htmlToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	// The listing double-encodes markup: the first parse unescapes entities,
	// the second strips the tags.
	outer, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	inner, err := goquery.NewDocumentFromReader(strings.NewReader(outer.Text()))
	if err != nil {
		return strings.TrimSpace(outer.Text())
	}

	var paragraphs []string
	inner.Find("p, li, pre, h1, h2, h3, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("li, blockquote").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return strings.TrimSpace(inner.Text())
	}
	return strings.Join(paragraphs, "\n")
}

func buildListingURL(base string, subjects []string, limit int) (string, error) {
	cleaned := make([]string, 0, len(subjects))
	for _, s := range subjects {
		s = strings.TrimPrefix(strings.TrimSpace(s), "r/")
		if s != "" {
			cleaned = append(cleaned, url.PathEscape(s))
		}
	}
	if len(cleaned) == 0 {
		return "", errors.New("no subreddits configured")
	}

	parsed, err := url.Parse(base + "/r/" + strings.Join(cleaned, "+") + "/new.json")
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}
	if limit > 0 {
		query := parsed.Query()
		query.Set("limit", strconv.Itoa(limit))
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}
