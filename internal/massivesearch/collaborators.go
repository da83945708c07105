package massivesearch

import (
	"context"
	"errors"
	"time"

	"github.com/prt-busca/prt-busca/internal/leads"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/unified"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured marks a stage whose collaborator was not supplied
var ErrNotConfigured = errors.New("not configured")

// Searcher runs the interleaved API search
type Searcher interface {
	Search(ctx context.Context, logger *logrus.Logger, query string) *unified.Outcome
}

// NavigationRequest asks a navigator to crawl for a query. SeedURLs are the
// URLs the API search already found.
type NavigationRequest struct {
	Query       string
	Context     SearchContext
	SeedURLs    []string
	MaxPages    int
	DepthLevels int
	SessionID   string
}

// PageDigest is one page visited by a navigator
type PageDigest struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Depth     int       `json:"depth"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Markdown  string    `json:"markdown,omitempty"`
	Links     int       `json:"links"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NavigationResult is what a navigator found
type NavigationResult struct {
	PagesAnalyzed int          `json:"pages_analyzed"`
	DepthReached  int          `json:"depth_reached"`
	Pages         []PageDigest `json:"pages"`
	Errors        []string     `json:"errors,omitempty"`
}

// Navigator crawls beyond the API results
type Navigator interface {
	Navigate(ctx context.Context, req NavigationRequest) (*NavigationResult, error)
}

// SocialContent is one post or profile found on a social platform
type SocialContent struct {
	Platform    string `json:"platform"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Type        string `json:"type,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// SocialResult is what a social extractor found
type SocialResult struct {
	SocialContent   []SocialContent `json:"social_content"`
	Screenshots     []string        `json:"screenshots"`
	ImagesExtracted []string        `json:"images_extracted"`
}

// SocialExtractor pulls social content out of the API results
type SocialExtractor interface {
	Extract(ctx context.Context, seed []internetsearch.ProviderResult, sessionID string, maxPages int) (*SocialResult, error)
}

// LeadStore persists extracted leads
type LeadStore interface {
	Save(ctx context.Context, leads []leads.Lead, sessionID, query string) error
}

// LeadExtractor derives leads from one search item
type LeadExtractor func(item internetsearch.Item, sourceURL string) []leads.Lead

// ProgressReporter receives stage transitions
type ProgressReporter interface {
	UpdateProgress(sessionID string, step, total int, message string) error
}

// Collaborators are the optional stage implementations. A nil field skips
// its stage.
type Collaborators struct {
	Navigator     Navigator
	Social        SocialExtractor
	LeadStore     LeadStore
	LeadExtractor LeadExtractor
	Progress      ProgressReporter
}

// Limits bounds the collaborator stages
type Limits struct {
	NavMaxPages    int
	NavDepthLevels int
	SocialMaxPages int
}

// DefaultLimits are used for any zero field
var DefaultLimits = Limits{NavMaxPages: 25, NavDepthLevels: 2, SocialMaxPages: 10}

func (l Limits) withDefaults() Limits {
	if l.NavMaxPages <= 0 {
		l.NavMaxPages = DefaultLimits.NavMaxPages
	}
	if l.NavDepthLevels <= 0 {
		l.NavDepthLevels = DefaultLimits.NavDepthLevels
	}
	if l.SocialMaxPages <= 0 {
		l.SocialMaxPages = DefaultLimits.SocialMaxPages
	}
	return l
}
