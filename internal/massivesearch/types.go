// Package massivesearch composes the interleaved API search with deep
// navigation, social extraction and lead derivation into one result.
package massivesearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/prt-busca/prt-busca/internal/leads"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
)

// SearchContext is the free-form market context of a request
type SearchContext struct {
	Segmento string            `json:"segmento,omitempty"`
	Produto  string            `json:"produto,omitempty"`
	Publico  string            `json:"publico,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Terms returns the non-empty segment and product terms
func (c SearchContext) Terms() []string {
	var terms []string
	for _, t := range []string{c.Segmento, c.Produto} {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// Merge fills segmento, produto and publico from values when they are still
// empty and keeps every other non-blank key in Extra
func (c SearchContext) Merge(values map[string]string) SearchContext {
	for key, value := range values {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		switch strings.ToLower(key) {
		case "segmento":
			if c.Segmento == "" {
				c.Segmento = value
			}
		case "produto":
			if c.Produto == "" {
				c.Produto = value
			}
		case "publico":
			if c.Publico == "" {
				c.Publico = value
			}
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]string)
			}
			c.Extra[key] = value
		}
	}
	return c
}

// ParseContextPairs reads key=value entries as given on the command line
func ParseContextPairs(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid context entry %q: expected key=value", pair)
		}
		values[strings.TrimSpace(key)] = value
	}
	return values, nil
}

// Request is one massive search invocation
type Request struct {
	Query     string        `json:"query"`
	SessionID string        `json:"session_id"`
	Context   SearchContext `json:"context"`
}

// Validate checks that the query and session id are not blank. Whether a
// session id is usable as a directory name is left to the session store.
func (r Request) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	r.SessionID = strings.TrimSpace(r.SessionID)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required),
		validation.Field(&r.SessionID, validation.Required),
	)
}

// NewSessionID generates an id usable as a session directory name
func NewSessionID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().Unix(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Stage is a step of the aggregator state machine
type Stage string

const (
	StageStarted       Stage = "started"
	StageAPISearchDone Stage = "api_search_done"
	StageNavDone       Stage = "nav_done"
	StageNavSkipped    Stage = "nav_skipped"
	StageSocialDone    Stage = "social_done"
	StageSocialSkipped Stage = "social_skipped"
	StageLeadsDone     Stage = "leads_done"
	StageLeadsSkipped  Stage = "leads_skipped"
	StageFinalized     Stage = "finalized"
)

// StageOutcome holds either the data of a collaborator stage or its error.
// A stage with an error has no data.
type StageOutcome[T any] struct {
	Data *T
	Err  string
}

// Done builds a successful stage outcome
func Done[T any](data *T) StageOutcome[T] {
	return StageOutcome[T]{Data: data}
}

// Failed builds a failed stage outcome
func Failed[T any](err error) StageOutcome[T] {
	return StageOutcome[T]{Err: err.Error()}
}

// OK reports whether the stage produced data
func (o StageOutcome[T]) OK() bool {
	return o.Err == "" && o.Data != nil
}

// MarshalJSON writes the data itself, or {"error": "..."} for a failed stage
func (o StageOutcome[T]) MarshalJSON() ([]byte, error) {
	if o.Err != "" {
		return json.Marshal(map[string]string{"error": o.Err})
	}
	if o.Data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.Data)
}

// UnmarshalJSON reads what MarshalJSON wrote
func (o *StageOutcome[T]) UnmarshalJSON(b []byte) error {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.Error != "" {
		*o = StageOutcome[T]{Err: probe.Error}
		return nil
	}
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null")) {
		*o = StageOutcome[T]{}
		return nil
	}
	var data T
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	*o = StageOutcome[T]{Data: &data}
	return nil
}

// Statistics counts what a run gathered. TotalSources is always
// APISources + WebsailorPages + SocialPosts.
type Statistics struct {
	TotalSources     int `json:"total_sources"`
	APISources       int `json:"api_sources"`
	WebsailorPages   int `json:"websailor_pages"`
	SocialPosts      int `json:"social_posts"`
	ScreenshotsCount int `json:"screenshots_count"`
	ImagesCount      int `json:"images_count"`
	LeadsCount       int `json:"leads_count"`
	// SearchDuration is the wall-clock run time in seconds
	SearchDuration float64 `json:"search_duration"`
}

// Result is the aggregate of one massive search run. A non-empty Error means
// the run was cut short; whatever was gathered before that is still present.
type Result struct {
	Query            string                          `json:"query"`
	SessionID        string                          `json:"session_id"`
	Context          SearchContext                   `json:"context"`
	SearchStarted    time.Time                       `json:"search_started"`
	APIResults       []internetsearch.ProviderResult `json:"api_results"`
	ConsolidatedURLs []string                        `json:"consolidated_urls"`
	WebsailorResults StageOutcome[NavigationResult]  `json:"websailor_results"`
	SocialResults    StageOutcome[SocialResult]      `json:"social_results"`
	ViralContent     []SocialContent                 `json:"viral_content"`
	Screenshots      []string                        `json:"screenshots_captured"`
	ImagesExtracted  []string                        `json:"images_extracted"`
	LeadsExtracted   []leads.Lead                    `json:"leads_extracted"`
	LeadsError       string                          `json:"leads_error,omitempty"`
	Statistics       Statistics                      `json:"statistics"`
	Stage            Stage                           `json:"stage"`
	Stages           []Stage                         `json:"stages"`
	Error            string                          `json:"error,omitempty"`
}

func newResult(req Request, started time.Time) *Result {
	return &Result{
		Query:            req.Query,
		SessionID:        req.SessionID,
		Context:          req.Context,
		SearchStarted:    started,
		APIResults:       []internetsearch.ProviderResult{},
		ConsolidatedURLs: []string{},
		ViralContent:     []SocialContent{},
		Screenshots:      []string{},
		ImagesExtracted:  []string{},
		LeadsExtracted:   []leads.Lead{},
		Stage:            StageStarted,
		Stages:           []Stage{StageStarted},
	}
}

func (r *Result) advance(s Stage) {
	r.Stage = s
	r.Stages = append(r.Stages, s)
}

// Degraded reports whether any stage failed or the run was cut short
func (r *Result) Degraded() bool {
	return r.Error != "" || r.WebsailorResults.Err != "" || r.SocialResults.Err != "" || r.LeadsError != ""
}
