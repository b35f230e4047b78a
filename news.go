package main

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const newsCacheKey = "news"

var errNoNews = errors.New("no news from any source")

// NewsAggregator merges the search API and RSS feeds into one list. The
// search API is tried first when configured; feeds are the second step and
// a static list is the last.
type NewsAggregator struct {
	api   NewsSource
	feeds []NewsSource
	cache *TTLCache[[]NewsItem]
	ttl   time.Duration
	limit int
	log   *slog.Logger
	now   func() time.Time
}

// NewNewsAggregator builds the aggregator; api may be nil when no key is
// configured.
func NewNewsAggregator(api NewsSource, feeds []NewsSource, ttl time.Duration, limit int, log *slog.Logger) *NewsAggregator {
	if log == nil {
		log = discardLogger()
	}
	if limit <= 0 {
		limit = 20
	}
	return &NewsAggregator{
		api:   api,
		feeds: feeds,
		cache: NewTTLCache[[]NewsItem](),
		ttl:   ttl,
		limit: limit,
		log:   log,
		now:   time.Now,
	}
}

// NewNewsAggregatorFromConfig wires the upstreams described by cfg.
func NewNewsAggregatorFromConfig(cfg NewsConfig, log *slog.Logger) *NewsAggregator {
	var api NewsSource
	if cfg.APIKey != "" {
		api = NewNewsAPIClient(cfg.APIURL, cfg.APIKey, cfg.Query, cfg.Limit)
	}
	feeds := make([]NewsSource, 0, len(cfg.Feeds))
	for _, u := range cfg.Feeds {
		feeds = append(feeds, NewFeedSource(u, cfg.PerFeed))
	}
	return NewNewsAggregator(api, feeds, cfg.CacheTTL, cfg.Limit, log)
}

// HasAPI reports whether the keyed search API is configured.
func (a *NewsAggregator) HasAPI() bool {
	return a.api != nil
}

// GetNews returns up to limit items, newest first. It never returns an
// empty list: when every source fails the static fallback is returned and
// nothing is cached.
func (a *NewsAggregator) GetNews(ctx context.Context) []NewsItem {
	items, err := a.cache.GetOrFetchContext(ctx, newsCacheKey, a.ttl, func(ctx context.Context) ([]NewsItem, error) {
		return a.fetchAll(ctx)
	})
	now := a.now()
	if err != nil {
		a.log.Warn("news unavailable, serving fallback", "error", err)
		return FallbackNews(now)
	}

	out := make([]NewsItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].PublishedText = FormatAge(out[i].Published, now)
	}
	return out
}

func (a *NewsAggregator) fetchAll(ctx context.Context) ([]NewsItem, error) {
	if a.api != nil {
		items, err := a.api.Fetch(ctx)
		if err != nil {
			a.log.Warn("news api failed, falling back to feeds", "error", err)
		}
		if len(items) > 0 {
			return a.merge(items), nil
		}
	}

	// A failing feed is skipped, so the group never returns an error.
	results := make([][]NewsItem, len(a.feeds))
	var g errgroup.Group
	for i, feed := range a.feeds {
		g.Go(func() error {
			items, err := feed.Fetch(ctx)
			if err != nil {
				a.log.Warn("skipping feed", "feed", feed.Name(), "error", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var all []NewsItem
	for _, items := range results {
		all = append(all, items...)
	}
	if len(all) == 0 {
		return nil, errNoNews
	}
	return a.merge(all), nil
}

// merge drops repeated links, sorts by publish instant and applies the cap.
func (a *NewsAggregator) merge(items []NewsItem) []NewsItem {
	seen := make(map[string]bool, len(items))
	out := make([]NewsItem, 0, len(items))
	for _, it := range items {
		if it.Link != "" && seen[it.Link] {
			continue
		}
		seen[it.Link] = true
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Published.After(out[j].Published)
	})
	if len(out) > a.limit {
		out = out[:a.limit]
	}
	return out
}

// Search filters the aggregated list by a case-insensitive substring of the
// title or summary. It does not query upstream.
func (a *NewsAggregator) Search(ctx context.Context, query string) ([]NewsItem, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, ErrEmptyQuery
	}

	var out []NewsItem
	for _, it := range a.GetNews(ctx) {
		if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Summary), q) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Refresh clears the cache so the next GetNews fetches again.
func (a *NewsAggregator) Refresh() {
	a.cache.Clear()
}
