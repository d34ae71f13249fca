// Package rss collects signals from RSS, Atom and JSON feeds
package rss

import (
	"bytes"
	"context"
	"iter"
	"net/url"
	"strings"
	"time"

	"newsroom/internal/adapters/collect/fetch"
	"newsroom/internal/core/signal"
	"newsroom/internal/core/textclean"
	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	"newsroom/internal/platform/net/http/bind"
	pstrings "newsroom/internal/platform/strings"
	dom "newsroom/internal/services/collectors/domain"

	"github.com/mmcdole/gofeed"
)

// Config is the method config for a feed
type Config struct {
	URL      string `json:"url" validate:"required,url"`
	MaxItems int    `json:"max_items" validate:"gte=0"`
}

// Collector reads one feed per scan
type Collector struct {
	fetch *fetch.Client
	now   func() time.Time
}

// New builds a feed collector on a shared fetcher
func New(f *fetch.Client) *Collector {
	return &Collector{fetch: f, now: time.Now}
}

// ScannerType is RSS
func (*Collector) ScannerType() signal.Type { return signal.RSS }

// ValidateConfiguration checks the feed URL is present and absolute http(s)
func (c *Collector) ValidateConfiguration(ctx context.Context, opts dom.Options) bool {
	_, err := c.config(opts)
	if err != nil {
		logger.C(ctx).Error().Err(err).Str("method_id", opts.MethodID).Msg("rss: invalid configuration")
		return false
	}
	return true
}

// Settle commits the feed validators after a clean scan and drops them
// otherwise, so a partial run refetches the whole feed
func (c *Collector) Settle(_ context.Context, opts dom.Options, clean bool) {
	cfg, err := c.config(opts)
	if err != nil {
		return
	}
	if clean {
		c.fetch.Commit(cfg.URL)
		return
	}
	c.fetch.Forget(cfg.URL)
}

func (c *Collector) config(opts dom.Options) (Config, error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return cfg, err
	}
	if err := bind.Struct(cfg); err != nil {
		return cfg, perr.Wrap(err, perr.ErrorCodeConfiguration, "rss config")
	}
	u, _ := url.Parse(cfg.URL)
	if u.Scheme != "http" && u.Scheme != "https" {
		return cfg, perr.Configf("rss: unsupported scheme %q", u.Scheme)
	}
	return cfg, nil
}

// Scan fetches and parses the feed up front; items are converted lazily
func (c *Collector) Scan(ctx context.Context, opts dom.Options) (iter.Seq2[signal.Signal, error], error) {
	cfg, err := c.config(opts)
	if err != nil {
		return nil, err
	}

	res, err := c.fetch.Get(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	if res.NotModified {
		logger.C(ctx).Debug().Str("url", cfg.URL).Msg("rss: feed not modified")
		return func(func(signal.Signal, error) bool) {}, nil
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(res.Body))
	if err != nil {
		// a feed we cannot parse is not worth revalidating against
		c.fetch.Forget(cfg.URL)
		return nil, perr.Wrapf(err, perr.ErrorCodeSource, "rss: parse %s", cfg.URL)
	}

	items := feed.Items
	if cfg.MaxItems > 0 && len(items) > cfg.MaxItems {
		items = items[:cfg.MaxItems]
	}
	base, _ := url.Parse(pstrings.FirstNonEmpty(feed.Link, res.URL))

	return func(yield func(signal.Signal, error) bool) {
		for i, it := range items {
			if err := ctx.Err(); err != nil {
				yield(signal.Signal{}, perr.Wrap(err, perr.ErrorCodeTimeout, "rss: scan interrupted"))
				return
			}
			sig, err := c.toSignal(feed, it, base, opts)
			if err != nil {
				err = perr.WithOp(perr.Wrapf(err, perr.ErrorCodeExtraction, "rss item %d", i), "rss.Scan")
			}
			if !yield(sig, err) {
				return
			}
		}
	}, nil
}

func (c *Collector) toSignal(feed *gofeed.Feed, it *gofeed.Item, base *url.URL, opts dom.Options) (signal.Signal, error) {
	if it == nil {
		return signal.Signal{}, perr.Extractionf("nil item")
	}
	title := textclean.Title(it.Title)
	if title == "" {
		return signal.Signal{}, perr.WithField(perr.Extractionf("item has no title"), "title")
	}

	link := resolve(base, strings.TrimSpace(it.Link))
	if link == "" && len(it.Links) > 0 {
		link = resolve(base, strings.TrimSpace(it.Links[0]))
	}

	body := pstrings.FirstNonEmpty(it.Content, it.Description)
	var content *string
	if body != "" {
		if textclean.LooksLikeHTML(body) {
			content = pstrings.Ptr(textclean.HTML(body))
		} else {
			content = pstrings.Ptr(textclean.Text(body))
		}
	}

	published := c.now().UTC()
	switch {
	case it.PublishedParsed != nil:
		published = it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		published = it.UpdatedParsed.UTC()
	}

	meta := map[string]any{"feed_type": feed.FeedType}
	if len(it.Categories) > 0 {
		meta["categories"] = it.Categories
	}
	if feed.Title != "" {
		meta["feed_title"] = textclean.Text(feed.Title)
	}
	if len(it.Enclosures) > 0 && it.Enclosures[0] != nil {
		meta["enclosure"] = it.Enclosures[0].URL
	}

	return signal.Signal{
		Title:       title,
		Content:     content,
		URL:         pstrings.Ptr(link),
		AuthorName:  author(feed, it),
		SourceName:  pstrings.Ptr(pstrings.FirstNonEmpty(opts.SourceName, textclean.Text(feed.Title))),
		PublishedAt: published,
		Type:        signal.RSS,
		Metadata:    meta,
		OriginalID:  pstrings.Ptr(pstrings.FirstNonEmpty(strings.TrimSpace(it.GUID), link)),
	}, nil
}

func author(feed *gofeed.Feed, it *gofeed.Item) string {
	for _, p := range it.Authors {
		if p != nil && p.Name != "" {
			return textclean.Text(p.Name)
		}
	}
	for _, p := range feed.Authors {
		if p != nil && p.Name != "" {
			return textclean.Text(p.Name)
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() || base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
