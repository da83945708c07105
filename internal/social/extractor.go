// Package social collects social-media posts and profiles out of search
// results, with their preview metadata, images and optional screenshots.
package social

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	"github.com/prt-busca/prt-busca/internal/massivesearch"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/prt-busca/prt-busca/internal/webpage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of social pages fetched at once
const DefaultConcurrency = 3

// Fetcher downloads an HTML page
type Fetcher interface {
	Fetch(ctx context.Context, logger *logrus.Logger, targetURL string) (*webpage.Page, error)
}

// Screenshotter renders a page to a PNG file
type Screenshotter interface {
	Capture(ctx context.Context, pageURL, path string) error
}

// Options tune an Extractor
type Options struct {
	// Screenshotter is optional; without it no screenshots are taken
	Screenshotter Screenshotter
	// SessionDir resolves the directory screenshots are written under
	SessionDir  func(sessionID string) (string, error)
	Concurrency int
}

// Extractor is the default social extraction stage
type Extractor struct {
	fetcher     Fetcher
	shots       Screenshotter
	sessionDir  func(string) (string, error)
	concurrency int
	logger      *logrus.Logger
}

// New creates an extractor
func New(logger *logrus.Logger, fetcher Fetcher, opts Options) *Extractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Extractor{
		fetcher:     fetcher,
		shots:       opts.Screenshotter,
		sessionDir:  opts.SessionDir,
		concurrency: opts.Concurrency,
		logger:      logger,
	}
}

type candidate struct {
	platform string
	item     internetsearch.Item
}

type extracted struct {
	content    massivesearch.SocialContent
	screenshot string
}

// Extract looks at up to maxPages social URLs in the seed results. A page that
// cannot be fetched is still reported with the title and snippet of its
// search result.
func (e *Extractor) Extract(ctx context.Context, seed []internetsearch.ProviderResult, sessionID string, maxPages int) (*massivesearch.SocialResult, error) {
	result := &massivesearch.SocialResult{
		SocialContent:   []massivesearch.SocialContent{},
		Screenshots:     []string{},
		ImagesExtracted: []string{},
	}

	candidates := selectCandidates(seed, maxPages)
	if len(candidates) == 0 {
		return result, nil
	}

	shotDir := ""
	if e.shots != nil && e.sessionDir != nil {
		dir, err := e.sessionDir(sessionID)
		if err != nil {
			return nil, fmt.Errorf("resolving screenshot directory: %w", err)
		}
		shotDir = filepath.Join(dir, "screenshots")
	}

	out := make([]extracted, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			out[i].content = e.describe(gctx, c)
			if shotDir != "" {
				path := filepath.Join(shotDir, fmt.Sprintf("%s_%02d.png", c.platform, i+1))
				if err := e.shots.Capture(gctx, c.item.URL, path); err != nil {
					e.logger.WithError(err).WithField("url", c.item.URL).Warn("Screenshot failed")
				} else {
					out[i].screenshot = path
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	seenImages := map[string]struct{}{}
	for _, x := range out {
		result.SocialContent = append(result.SocialContent, x.content)
		if x.screenshot != "" {
			result.Screenshots = append(result.Screenshots, x.screenshot)
		}
		if img := x.content.Image; img != "" {
			if _, dup := seenImages[img]; !dup {
				seenImages[img] = struct{}{}
				result.ImagesExtracted = append(result.ImagesExtracted, img)
			}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"posts":       len(result.SocialContent),
		"screenshots": len(result.Screenshots),
		"images":      len(result.ImagesExtracted),
	}).Info("Social extraction completed")

	return result, nil
}

func selectCandidates(seed []internetsearch.ProviderResult, maxPages int) []candidate {
	seen := map[string]struct{}{}
	var out []candidate
	for _, pr := range seed {
		if !pr.OK() {
			continue
		}
		for _, item := range pr.Items {
			if maxPages > 0 && len(out) >= maxPages {
				return out
			}
			platform := Platform(item.URL)
			if platform == "" {
				continue
			}
			if _, dup := seen[item.URL]; dup {
				continue
			}
			seen[item.URL] = struct{}{}
			out = append(out, candidate{platform: platform, item: item})
		}
	}
	return out
}

func (e *Extractor) describe(ctx context.Context, c candidate) massivesearch.SocialContent {
	content := massivesearch.SocialContent{
		Platform:    c.platform,
		URL:         c.item.URL,
		Title:       c.item.Title,
		Description: c.item.Snippet,
	}

	page, err := e.fetcher.Fetch(ctx, e.logger, c.item.URL)
	if err != nil {
		e.logger.WithError(err).WithField("url", c.item.URL).Debug("Social page fetch failed, using search snippet")
		return content
	}

	meta, err := ParseMeta(page.HTML, c.item.URL)
	if err != nil {
		e.logger.WithError(err).WithField("url", c.item.URL).Debug("Failed to parse social page metadata")
		return content
	}

	if meta.Title != "" {
		content.Title = meta.Title
	}
	if meta.Description != "" {
		content.Description = meta.Description
	}
	content.Image = meta.Image
	content.Type = meta.Type
	content.SiteName = meta.SiteName
	return content
}

// Meta is the preview metadata of a page
type Meta struct {
	Title       string
	Description string
	Image       string
	Type        string
	SiteName    string
}

// ParseMeta reads OpenGraph tags, falling back to <title> and the
// description meta tag. The image is resolved against pageURL.
func ParseMeta(html, pageURL string) (*Meta, error) {
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(html)); err != nil {
		return nil, fmt.Errorf("failed to parse OpenGraph: %w", err)
	}

	meta := &Meta{
		Title:       strings.TrimSpace(og.Title),
		Description: strings.TrimSpace(og.Description),
		Type:        og.Type,
		SiteName:    og.SiteName,
	}

	if meta.Title == "" || meta.Description == "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err == nil {
			if meta.Title == "" {
				meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
			}
			if meta.Description == "" {
				if d, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
					meta.Description = strings.TrimSpace(d)
				}
			}
		}
	}

	if len(og.Images) > 0 && og.Images[0].URL != "" {
		meta.Image = resolveImage(pageURL, og.Images[0].URL)
	}
	return meta, nil
}

func resolveImage(pageURL, imageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return imageURL
	}
	if u, ok := webpage.Resolve(base, imageURL); ok {
		return u.String()
	}
	return ""
}

var _ massivesearch.SocialExtractor = (*Extractor)(nil)
