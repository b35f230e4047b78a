package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
)

// NewsItem is one normalized article from any source.
type NewsItem struct {
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Link          string    `json:"link"`
	Published     time.Time `json:"published_at"`
	PublishedText string    `json:"published"`
	Source        string    `json:"source"`
	ImageURL      string    `json:"image_url,omitempty"`
}

// NewsSource fetches a batch of items from one upstream.
type NewsSource interface {
	Name() string
	Fetch(ctx context.Context) ([]NewsItem, error)
}

// --- News search API ---

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	URLToImage  string `json:"urlToImage"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// NewsAPIClient queries a keyed news search endpoint.
type NewsAPIClient struct {
	client   *resty.Client
	baseURL  string
	apiKey   string
	query    string
	pageSize int
	now      func() time.Time
}

func NewNewsAPIClient(baseURL, apiKey, query string, pageSize int) *NewsAPIClient {
	client := resty.New()
	client.SetTimeout(15 * time.Second)

	return &NewsAPIClient{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		query:    query,
		pageSize: pageSize,
		now:      time.Now,
	}
}

func (n *NewsAPIClient) Name() string { return "newsapi" }

func (n *NewsAPIClient) Fetch(ctx context.Context) ([]NewsItem, error) {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", n.apiKey).
		SetQueryParams(map[string]string{
			"q":        n.query,
			"language": "en",
			"sortBy":   "publishedAt",
			"pageSize": fmt.Sprintf("%d", n.pageSize),
		}).
		Get(n.baseURL + "/v2/everything")
	if err != nil {
		return nil, fmt.Errorf("failed to query news api: %w", err)
	}

	var body newsAPIResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("failed to parse news api response: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || body.Status != "ok" {
		return nil, fmt.Errorf("news api returned %d: %s %s", resp.StatusCode(), body.Code, body.Message)
	}

	items := make([]NewsItem, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.Title == "" || a.URL == "" || a.Title == "[Removed]" {
			continue
		}
		published, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			published = n.now()
		}
		items = append(items, NewsItem{
			Title:     StripHTML(a.Title),
			Summary:   SummarizeHTML(a.Description),
			Link:      a.URL,
			Published: published,
			Source:    a.Source.Name,
			ImageURL:  a.URLToImage,
		})
	}
	return items, nil
}

// --- RSS / Atom ---

// FeedSource reads one RSS or Atom feed.
type FeedSource struct {
	url     string
	perFeed int
	parser  *gofeed.Parser
	now     func() time.Time
}

func NewFeedSource(url string, perFeed int) *FeedSource {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 10 * time.Second}
	parser.UserAgent = "Mozilla/5.0"

	return &FeedSource{url: url, perFeed: perFeed, parser: parser, now: time.Now}
}

func (f *FeedSource) Name() string { return f.url }

func (f *FeedSource) Fetch(ctx context.Context) ([]NewsItem, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", f.url, err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = f.url
	}

	var items []NewsItem
	for _, entry := range feed.Items {
		if len(items) >= f.perFeed {
			break
		}
		if entry == nil || strings.TrimSpace(entry.Title) == "" || entry.Link == "" {
			continue
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}

		published := f.now()
		switch {
		case entry.PublishedParsed != nil:
			published = *entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			published = *entry.UpdatedParsed
		}

		items = append(items, NewsItem{
			Title:     StripHTML(entry.Title),
			Summary:   SummarizeHTML(summary),
			Link:      entry.Link,
			Published: published,
			Source:    source,
		})
	}
	return items, nil
}

// --- Static fallback ---

var fallbackNews = []struct {
	Title, Summary string
}{
	{"生成式 AI 持續改變軟體開發流程", "越來越多團隊將大型語言模型導入程式碼審查、測試與文件撰寫，開發效率明顯提升。"},
	{"多模態模型成為各大廠競爭焦點", "能同時理解文字、圖片與語音的模型陸續推出，應用場景從客服延伸到醫療與教育。"},
	{"AI 晶片需求帶動半導體產業成長", "資料中心對高效能運算的需求強勁，GPU 與客製化加速器供不應求。"},
	{"企業導入 AI 助理的實務經驗", "從小規模試點開始、建立資料治理與評估機制，是成功導入的關鍵。"},
	{"開源模型生態快速成熟", "開源權重模型在多項基準測試中逼近商用模型，降低了企業自建服務的門檻。"},
}

// FallbackNews returns the hard-coded list shown when every source fails.
func FallbackNews(now time.Time) []NewsItem {
	items := make([]NewsItem, len(fallbackNews))
	for i, n := range fallbackNews {
		published := now.Add(-time.Duration(i+1) * time.Hour)
		items[i] = NewsItem{
			Title:         n.Title,
			Summary:       n.Summary,
			Link:          "#",
			Published:     published,
			PublishedText: FormatAge(published, now),
			Source:        "Will AI 編輯部",
		}
	}
	return items
}
