// Package deepnav crawls outward from search results, a few levels deep on
// the same sites, and digests every page it visits.
package deepnav

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prt-busca/prt-busca/internal/cache"
	"github.com/prt-busca/prt-busca/internal/massivesearch"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/unified"
	"github.com/prt-busca/prt-busca/internal/webpage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the number of pages fetched at once
	DefaultConcurrency = 4

	// MarkdownLimit caps the markdown kept per page, in runes
	MarkdownLimit = 4000

	// PageCacheTTL is how long a digested page is reused
	PageCacheTTL = 30 * time.Minute
)

// Searcher provides seed URLs
type Searcher interface {
	Search(ctx context.Context, logger *logrus.Logger, query string) *unified.Outcome
}

// Fetcher downloads an HTML page
type Fetcher interface {
	Fetch(ctx context.Context, logger *logrus.Logger, targetURL string) (*webpage.Page, error)
}

// TextReader returns a readable text rendering of a URL. It is used when a
// page cannot be fetched directly.
type TextReader interface {
	Read(ctx context.Context, pageURL string) (string, error)
}

// Options tune a Navigator
type Options struct {
	Concurrency int
	// Reader is optional
	Reader TextReader
}

// Navigator is the default deep navigation stage
type Navigator struct {
	searcher    Searcher
	fetcher     Fetcher
	reader      TextReader
	converter   *webpage.MarkdownConverter
	pages       *cache.Cache[*massivesearch.PageDigest]
	links       *cache.Cache[[]string]
	concurrency int
	logger      *logrus.Logger
}

// New creates a navigator
func New(logger *logrus.Logger, searcher Searcher, fetcher Fetcher, opts Options) *Navigator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Navigator{
		searcher:    searcher,
		fetcher:     fetcher,
		reader:      opts.Reader,
		converter:   webpage.NewMarkdownConverter(),
		pages:       cache.New[*massivesearch.PageDigest](PageCacheTTL),
		links:       cache.New[[]string](PageCacheTTL),
		concurrency: opts.Concurrency,
		logger:      logger,
	}
}

// SeedQuery appends the context's segment and product to the query
func SeedQuery(query string, c massivesearch.SearchContext) string {
	parts := append([]string{strings.TrimSpace(query)}, c.Terms()...)
	return strings.Join(parts, " ")
}

// Navigate visits up to req.MaxPages pages, breadth first, following
// same-host links for req.DepthLevels levels starting at req.SeedURLs. A
// fresh search runs only when the context adds terms to the query; its URLs
// are visited after the given seeds. Individual page failures are recorded
// in the result, not returned.
func (n *Navigator) Navigate(ctx context.Context, req massivesearch.NavigationRequest) (*massivesearch.NavigationResult, error) {
	if req.MaxPages <= 0 || req.DepthLevels <= 0 {
		return nil, fmt.Errorf("invalid navigation limits: max_pages=%d depth_levels=%d", req.MaxPages, req.DepthLevels)
	}

	seedQuery := SeedQuery(req.Query, req.Context)
	log := n.logger.WithFields(logrus.Fields{
		"session_id": req.SessionID,
		"query":      seedQuery,
	})

	seeds := append([]string(nil), req.SeedURLs...)
	if seedQuery != strings.TrimSpace(req.Query) {
		outcome := n.searcher.Search(ctx, n.logger, seedQuery)
		if outcome == nil {
			return nil, fmt.Errorf("seed search returned no outcome")
		}
		seeds = append(seeds, outcome.ConsolidatedURLs...)
		log.WithField("urls", len(outcome.ConsolidatedURLs)).Debug("Context search added seed URLs")
	}

	result := &massivesearch.NavigationResult{Pages: []massivesearch.PageDigest{}}
	visited := map[string]struct{}{}
	level := unvisited(seeds, visited)

	for depth := 0; depth < req.DepthLevels && len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			break
		}
		remaining := req.MaxPages - len(result.Pages)
		if remaining <= 0 {
			break
		}
		if len(level) > remaining {
			level = level[:remaining]
		}
		for _, u := range level {
			visited[u] = struct{}{}
		}

		digests, links, errs := n.visitLevel(ctx, level, depth)
		result.Pages = append(result.Pages, digests...)
		result.Errors = append(result.Errors, errs...)
		result.DepthReached = depth + 1

		log.WithFields(logrus.Fields{
			"depth":  depth,
			"pages":  len(digests),
			"errors": len(errs),
		}).Debug("Navigation level completed")

		level = unvisited(links, visited)
	}

	result.PagesAnalyzed = len(result.Pages)
	log.WithFields(logrus.Fields{
		"pages_analyzed": result.PagesAnalyzed,
		"depth_reached":  result.DepthReached,
	}).Info("Deep navigation completed")

	return result, nil
}

// visitLevel digests every URL of one level concurrently. Results keep the
// level's URL order.
func (n *Navigator) visitLevel(ctx context.Context, urls []string, depth int) ([]massivesearch.PageDigest, []string, []string) {
	digests := make([]*massivesearch.PageDigest, len(urls))
	links := make([][]string, len(urls))
	errs := make([]error, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			digests[i], links[i], errs[i] = n.visit(gctx, u, depth)
			// page errors are collected, never returned, so one bad page
			// does not cancel the rest of the level
			return nil
		})
	}
	_ = g.Wait()

	var (
		pages    []massivesearch.PageDigest
		next     []string
		messages []string
	)
	for i := range urls {
		if errs[i] != nil {
			messages = append(messages, errs[i].Error())
			continue
		}
		if digests[i] != nil {
			pages = append(pages, *digests[i])
		}
		next = append(next, links[i]...)
	}
	return pages, next, messages
}

func (n *Navigator) visit(ctx context.Context, pageURL string, depth int) (*massivesearch.PageDigest, []string, error) {
	if cached, ok := n.pages.Get(pageURL); ok {
		d := *cached
		d.Depth = depth
		links, _ := n.links.Get(pageURL)
		return &d, links, nil
	}

	page, err := n.fetcher.Fetch(ctx, n.logger, pageURL)
	if err != nil {
		if n.reader == nil {
			return nil, nil, err
		}
		digest, readErr := n.readFallback(ctx, pageURL, depth)
		if readErr != nil {
			return nil, nil, fmt.Errorf("%w (reader: %v)", err, readErr)
		}
		return digest, nil, nil
	}

	d, err := n.converter.Digest(page, MarkdownLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("digesting %s: %w", pageURL, err)
	}

	digest := &massivesearch.PageDigest{
		URL:       pageURL,
		Title:     d.Title,
		Depth:     depth,
		Excerpt:   d.Excerpt,
		Markdown:  d.Markdown,
		Links:     len(d.Links),
		FetchedAt: page.FetchedAt,
	}
	n.pages.Set(pageURL, digest)
	n.links.Set(pageURL, d.Links)
	return digest, d.Links, nil
}

func (n *Navigator) readFallback(ctx context.Context, pageURL string, depth int) (*massivesearch.PageDigest, error) {
	text, err := n.reader.Read(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	title := ""
	// reader output starts with "Title: ..." when the page has one
	if first, _, ok := strings.Cut(text, "\n"); ok && strings.HasPrefix(first, "Title:") {
		title = strings.TrimSpace(strings.TrimPrefix(first, "Title:"))
	}
	runes := []rune(text)
	if len(runes) > MarkdownLimit {
		text = string(runes[:MarkdownLimit])
	}
	digest := &massivesearch.PageDigest{
		URL:       pageURL,
		Title:     title,
		Depth:     depth,
		Markdown:  text,
		FetchedAt: time.Now().UTC(),
	}
	n.pages.Set(pageURL, digest)
	return digest, nil
}

// unvisited returns the distinct http(s) URLs not yet visited, in order
func unvisited(urls []string, visited map[string]struct{}) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if _, ok := visited[raw]; ok {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}
	return out
}

var _ massivesearch.Navigator = (*Navigator)(nil)
