package news

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonreiter/govader"
	"github.com/mmcdole/gofeed"

	m "stockdash/data/models"
	c "stockdash/service/api"
)

const (
	BaseUrlDefault = "https://feeds.finance.yahoo.com"
	SourceName     = "yahoo-rss"
	DefaultLimit   = 10

	defaultTimeout = 15 * time.Second
	headlinePath   = "/rss/2.0/headline"
)

// FeedClient reads a symbol's headline feed and scores each item with VADER
type FeedClient struct {
	*c.Client
	analyzer *govader.SentimentIntensityAnalyzer
}

func GetClient(baseUrl string, transport http.RoundTripper) *FeedClient {
	if baseUrl == "" {
		baseUrl = BaseUrlDefault
	}
	return NewClient(c.ClientFactory(baseUrl, "", defaultTimeout, transport))
}

func NewClient(client *c.Client) *FeedClient {
	return &FeedClient{
		Client:   client,
		analyzer: govader.NewSentimentIntensityAnalyzer(),
	}
}

func (fc *FeedClient) Name() string { return SourceName }

// GetNews returns up to limit items in feed order. A limit <= 0 uses DefaultLimit.
func (fc *FeedClient) GetNews(ctx context.Context, ticker string, limit int) ([]m.NewsItem, error) {
	if fc == nil || fc.Client == nil {
		panic("news client has not been set.")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	response, err := fc.Connection.Request(ctx, buildRequestPath(ticker))
	if err != nil {
		return nil, fmt.Errorf("news feed request: %w", err)
	}

	body, err := c.ReadBody(response)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error parsing news feed for %s: %w", ticker, err)
	}

	items := make([]m.NewsItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}
		items = append(items, fc.toNewsItem(item))
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: news feed for %s has no items", m.ErrNoData, ticker)
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (fc *FeedClient) toNewsItem(item *gofeed.Item) m.NewsItem {
	summary := strings.TrimSpace(item.Description)
	if summary == "" {
		summary = strings.TrimSpace(item.Content)
	}

	res := m.NewsItem{
		Title:            strings.TrimSpace(item.Title),
		Summary:          summary,
		Link:             item.Link,
		TitleSentiment:   fc.Score(item.Title),
		SummarySentiment: fc.Score(summary),
	}
	if item.PublishedParsed != nil {
		res.Published = item.PublishedParsed.UTC()
	}
	return res
}

// Score is the VADER compound polarity of text, 0 for empty text
func (fc *FeedClient) Score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return fc.analyzer.PolarityScores(text).Compound
}

func buildRequestPath(ticker string) *url.URL {
	endpoint := &url.URL{Path: headlinePath}

	query := endpoint.Query()
	query.Set("s", ticker)
	query.Set("region", "US")
	query.Set("lang", "en-US")
	endpoint.RawQuery = query.Encode()

	return endpoint
}
