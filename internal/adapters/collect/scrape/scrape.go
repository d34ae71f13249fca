// Package scrape collects signals from HTML listing pages using CSS selectors
package scrape

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
	ptime "newsroom/internal/platform/time"
	dom "newsroom/internal/services/collectors/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Config is the method config for a scraped listing. Title, Link, Summary
// and Date are evaluated inside each Item match; an empty Title uses the
// item's own text and an empty Link uses the first anchor
type Config struct {
	URL        string `json:"url" validate:"required,url"`
	Item       string `json:"item" validate:"required"`
	Title      string `json:"title"`
	Link       string `json:"link"`
	Summary    string `json:"summary"`
	Date       string `json:"date"`
	DateAttr   string `json:"date_attr"`
	DateLayout string `json:"date_layout"`
	Author     string `json:"author"`

	// Content, when set, is looked up on each article page
	Content  string `json:"content"`
	MaxItems int    `json:"max_items" validate:"gte=0"`
}

// Collector scrapes one listing per scan
type Collector struct {
	fetch *fetch.Client
	now   func() time.Time
}

// New builds a scrape collector on a shared fetcher
func New(f *fetch.Client) *Collector {
	return &Collector{fetch: f, now: time.Now}
}

// ScannerType is SCRAPE
func (*Collector) ScannerType() signal.Type { return signal.Scrape }

// ValidateConfiguration checks the url and that every selector compiles
func (c *Collector) ValidateConfiguration(ctx context.Context, opts dom.Options) bool {
	if _, err := c.config(opts); err != nil {
		logger.C(ctx).Error().Err(err).Str("method_id", opts.MethodID).Msg("scrape: invalid configuration")
		return false
	}
	return true
}

// Settle commits the listing validators after a clean scan and drops them
// otherwise, so a partial run refetches the whole listing
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
		return cfg, perr.Wrap(err, perr.ErrorCodeConfiguration, "scrape config")
	}
	for name, sel := range map[string]string{
		"item": cfg.Item, "title": cfg.Title, "link": cfg.Link, "summary": cfg.Summary,
		"date": cfg.Date, "author": cfg.Author, "content": cfg.Content,
	} {
		if sel == "" {
			continue
		}
		// goquery silently matches nothing on a bad selector
		if _, err := cascadia.Compile(sel); err != nil {
			return cfg, perr.WithField(perr.Wrapf(err, perr.ErrorCodeConfiguration, "scrape: bad %s selector %q", name, sel), name)
		}
	}
	return cfg, nil
}

// Scan fetches the listing up front; items (and article pages, when a
// content selector is set) are processed lazily
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
		return func(func(signal.Signal, error) bool) {}, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeSource, "scrape: parse %s", cfg.URL)
	}

	base, _ := url.Parse(res.URL)
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(b)
		}
	}

	nodes := doc.Find(cfg.Item)
	if nodes.Length() == 0 {
		logger.C(ctx).Warn().Str("url", cfg.URL).Str("item", cfg.Item).Msg("scrape: item selector matched nothing")
	}
	sitename := pstrings.FirstNonEmpty(opts.SourceName, metaContent(doc, "og:site_name"), textclean.Text(doc.Find("title").First().Text()))

	return func(yield func(signal.Signal, error) bool) {
		seen := map[string]struct{}{}
		count := 0
		for i := range nodes.Length() {
			if cfg.MaxItems > 0 && count >= cfg.MaxItems {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(signal.Signal{}, perr.Wrap(err, perr.ErrorCodeTimeout, "scrape: scan interrupted"))
				return
			}

			sig, err := c.extract(nodes.Eq(i), cfg, base, sitename)
			if err != nil {
				if !yield(signal.Signal{}, perr.WithOp(perr.Wrapf(err, perr.ErrorCodeExtraction, "scrape item %d", i), "scrape.Scan")) {
					return
				}
				continue
			}
			// listings often repeat a story in several blocks
			if _, dup := seen[*sig.URL]; dup {
				continue
			}
			seen[*sig.URL] = struct{}{}

			if cfg.Content != "" {
				if err := c.fillContent(ctx, &sig, cfg.Content); err != nil {
					if !yield(signal.Signal{}, perr.WithOp(perr.Wrapf(err, perr.ErrorCodeExtraction, "scrape article %s", *sig.URL), "scrape.Scan")) {
						return
					}
					continue
				}
			}
			count++
			if !yield(sig, nil) {
				return
			}
		}
	}, nil
}

func (c *Collector) extract(sel *goquery.Selection, cfg Config, base *url.URL, source string) (signal.Signal, error) {
	titleSel := sel
	if cfg.Title != "" {
		titleSel = sel.Find(cfg.Title).First()
	}
	title := textclean.Title(titleSel.Text())
	if title == "" {
		return signal.Signal{}, perr.WithField(perr.Extractionf("no title"), "title")
	}

	linkSel := sel.Find(pstrings.FirstNonEmpty(cfg.Link, "a[href]")).First()
	if linkSel.Length() == 0 && goquery.NodeName(sel) == "a" {
		linkSel = sel
	}
	href, _ := linkSel.Attr("href")
	link := resolve(base, href)
	if link == "" {
		return signal.Signal{}, perr.WithField(perr.Extractionf("no link for %q", title), "url")
	}

	var content *string
	if cfg.Summary != "" {
		if h, err := sel.Find(cfg.Summary).First().Html(); err == nil {
			content = pstrings.Ptr(textclean.HTML(h))
		}
	}

	published := c.now().UTC()
	if cfg.Date != "" {
		d := sel.Find(cfg.Date).First()
		raw := strings.TrimSpace(d.Text())
		if cfg.DateAttr != "" {
			raw, _ = d.Attr(cfg.DateAttr)
		}
		layouts := ptime.DefaultLayouts
		if cfg.DateLayout != "" {
			layouts = append([]string{cfg.DateLayout}, layouts...)
		}
		if t, ok := ptime.Parse(raw, layouts...); ok {
			published = t
		}
	}

	var author string
	if cfg.Author != "" {
		author = textclean.Text(sel.Find(cfg.Author).First().Text())
	}

	return signal.Signal{
		Title:       title,
		Content:     content,
		URL:         pstrings.Ptr(link),
		AuthorName:  author,
		SourceName:  pstrings.Ptr(source),
		PublishedAt: published,
		Type:        signal.Scrape,
		Metadata:    map[string]any{"listing": cfg.URL},
		OriginalID:  pstrings.Ptr(link),
	}, nil
}

func (c *Collector) fillContent(ctx context.Context, sig *signal.Signal, sel string) error {
	res, err := c.fetch.GetFresh(ctx, *sig.URL)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return err
	}
	h, err := doc.Find(sel).First().Html()
	if err != nil {
		return err
	}
	if text := textclean.HTML(h); text != "" {
		sig.Content = &text
	}
	if sig.AuthorName == "" {
		sig.AuthorName = textclean.Text(metaContent(doc, "author"))
	}
	return nil
}

func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(`meta[property="` + name + `"], meta[name="` + name + `"]`).First()
	v, _ := sel.Attr("content")
	return strings.TrimSpace(v)
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
