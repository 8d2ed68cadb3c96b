package api

import (
	"context"
	"fmt"
	"net/url"
)

// News defaults.
const (
	DefaultNewsURL      = "https://newsdata.io/api/1"
	DefaultNewsQuery    = "crypto"
	DefaultNewsLanguage = "en"
	NewsAPIKeyParam     = "apikey"
)

// NewsOptions are the query parameters of GET /news.
type NewsOptions struct {
	Query    string // Default "crypto"
	Language string // Default "en"
	Page     string // nextPage token from a previous response
}

// NewsResponse from GET /news
type NewsResponse struct {
	Status       string        `json:"status"`
	TotalResults int           `json:"totalResults"`
	Results      []NewsArticle `json:"results"`
	NextPage     string        `json:"nextPage,omitempty"`
}

// NewsArticle is one article in NewsResponse.
type NewsArticle struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	SourceID    string   `json:"source_id"`
	PubDate     string   `json:"pubDate"`
	Creator     []string `json:"creator"`
	Category    []string `json:"category"`
}

// NewNewsClient creates a client for the newsdata.io API. The key travels in
// the apikey query parameter.
func NewNewsClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultNewsURL
	}
	return NewClient(baseURL, apiKey, append(opts, WithAPIKeyQuery(NewsAPIKeyParam))...)
}

// GetNews fetches the latest articles matching opts. It makes a single
// attempt and fails with ErrAPIKeyMissing when the client has no key.
// A body without a results array is ErrInvalidResponse.
func (c *Client) GetNews(ctx context.Context, opts NewsOptions) (*NewsResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("get news: %w", ErrAPIKeyMissing)
	}

	query := url.Values{}
	query.Set("q", orDefault(opts.Query, DefaultNewsQuery))
	query.Set("language", orDefault(opts.Language, DefaultNewsLanguage))
	if opts.Page != "" {
		query.Set("page", opts.Page)
	}

	var resp NewsResponse
	err := c.get(ctx, call{endpoint: "news", what: "news articles", path: "/news", query: query, attempts: single}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get news: %w", err)
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("get news: %w: missing results", ErrInvalidResponse)
	}
	return &resp, nil
}
