package massivesearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prt-busca/prt-busca/internal/leads"
	"github.com/sirupsen/logrus"
)

const totalSteps = 5

// Aggregator runs massive searches. It is safe for concurrent use as long as
// its collaborators are.
type Aggregator struct {
	searcher Searcher
	collab   Collaborators
	limits   Limits
	logger   *logrus.Logger
	now      func() time.Time
}

// New creates an aggregator. Only the searcher is required.
func New(logger *logrus.Logger, searcher Searcher, collab Collaborators, limits Limits) *Aggregator {
	return &Aggregator{
		searcher: searcher,
		collab:   collab,
		limits:   limits.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// Limits returns the effective stage limits
func (a *Aggregator) Limits() Limits {
	return a.limits
}

// Run executes every stage for the request and always returns a finalized
// result. An invalid request, stage failures and panics are recorded in it.
func (a *Aggregator) Run(ctx context.Context, req Request) *Result {
	start := a.now()
	result := newResult(req, start)
	log := a.logger.WithFields(logrus.Fields{
		"query":      req.Query,
		"session_id": req.SessionID,
	})

	if err := req.Validate(); err != nil {
		result.Error = fmt.Sprintf("invalid massive search request: %v", err)
		log.WithError(err).Warn("Rejected massive search request")
		a.finalize(result, start)
		return result
	}

	log.Info("Starting massive search")

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Error = fmt.Sprintf("massive search aborted: %v", r)
				log.WithField("panic", r).Error("Massive search aborted")
			}
		}()
		a.runStages(ctx, req, result)
	}()

	a.finalize(result, start)
	a.report(req.SessionID, totalSteps, "finalized")

	log.WithFields(logrus.Fields{
		"total_sources": result.Statistics.TotalSources,
		"leads":         result.Statistics.LeadsCount,
		"duration":      result.Statistics.SearchDuration,
		"degraded":      result.Degraded(),
	}).Info("Massive search completed")

	return result
}

func (a *Aggregator) runStages(ctx context.Context, req Request, result *Result) {
	a.searchAPIs(ctx, req, result)
	a.report(req.SessionID, 1, "api search done")

	a.navigate(ctx, req, result)
	a.report(req.SessionID, 2, string(result.Stage))

	a.extractSocial(ctx, req, result)
	a.report(req.SessionID, 3, string(result.Stage))

	a.deriveLeads(ctx, req, result)
	a.report(req.SessionID, 4, string(result.Stage))
}

func (a *Aggregator) searchAPIs(ctx context.Context, req Request, result *Result) {
	outcome := a.searcher.Search(ctx, a.logger, req.Query)
	if outcome != nil {
		result.APIResults = outcome.AllResults
		result.ConsolidatedURLs = outcome.ConsolidatedURLs
	}
	result.Statistics.APISources = len(result.APIResults)
	result.advance(StageAPISearchDone)
}

func (a *Aggregator) navigate(ctx context.Context, req Request, result *Result) {
	if a.collab.Navigator == nil {
		result.WebsailorResults = Failed[NavigationResult](fmt.Errorf("navigator %w", ErrNotConfigured))
		result.advance(StageNavSkipped)
		return
	}

	var nav *NavigationResult
	err := guard("navigation", func() error {
		var err error
		nav, err = a.collab.Navigator.Navigate(ctx, NavigationRequest{
			Query:       req.Query,
			Context:     req.Context,
			SeedURLs:    result.ConsolidatedURLs,
			MaxPages:    a.limits.NavMaxPages,
			DepthLevels: a.limits.NavDepthLevels,
			SessionID:   req.SessionID,
		})
		return err
	})
	if err == nil && nav == nil {
		err = errors.New("navigator returned no result")
	}
	if err != nil {
		a.logger.WithError(err).WithField("session_id", req.SessionID).Error("Deep navigation failed")
		result.WebsailorResults = Failed[NavigationResult](err)
		result.advance(StageNavSkipped)
		return
	}

	result.WebsailorResults = Done(nav)
	result.Statistics.WebsailorPages = nav.PagesAnalyzed
	result.advance(StageNavDone)
}

func (a *Aggregator) extractSocial(ctx context.Context, req Request, result *Result) {
	if a.collab.Social == nil {
		result.SocialResults = Failed[SocialResult](fmt.Errorf("social extractor %w", ErrNotConfigured))
		result.advance(StageSocialSkipped)
		return
	}

	var social *SocialResult
	err := guard("social extraction", func() error {
		var err error
		social, err = a.collab.Social.Extract(ctx, result.APIResults, req.SessionID, a.limits.SocialMaxPages)
		return err
	})
	if err == nil && social == nil {
		err = errors.New("social extractor returned no result")
	}
	if err != nil {
		a.logger.WithError(err).WithField("session_id", req.SessionID).Error("Social extraction failed")
		result.SocialResults = Failed[SocialResult](err)
		result.advance(StageSocialSkipped)
		return
	}

	result.SocialResults = Done(social)
	if social.SocialContent != nil {
		result.ViralContent = social.SocialContent
	}
	if social.Screenshots != nil {
		result.Screenshots = social.Screenshots
	}
	if social.ImagesExtracted != nil {
		result.ImagesExtracted = social.ImagesExtracted
	}
	result.Statistics.SocialPosts = len(result.ViralContent)
	result.Statistics.ScreenshotsCount = len(result.Screenshots)
	result.Statistics.ImagesCount = len(result.ImagesExtracted)
	result.advance(StageSocialDone)
}

func (a *Aggregator) deriveLeads(ctx context.Context, req Request, result *Result) {
	if a.collab.LeadExtractor == nil {
		result.LeadsError = fmt.Sprintf("lead extractor %v", ErrNotConfigured)
		result.advance(StageLeadsSkipped)
		return
	}

	var found []leads.Lead
	err := guard("lead extraction", func() error {
		for _, pr := range result.APIResults {
			for _, item := range pr.Items {
				for _, l := range a.collab.LeadExtractor(item, item.URL) {
					l.SessionID = req.SessionID
					l.Query = req.Query
					found = append(found, l)
				}
			}
		}
		// Social content carries no contact fields yet, so it yields no leads.

		if len(found) == 0 || a.collab.LeadStore == nil {
			return nil
		}
		return a.collab.LeadStore.Save(ctx, found, req.SessionID, req.Query)
	})
	if err != nil {
		a.logger.WithError(err).WithField("session_id", req.SessionID).Error("Lead extraction failed")
		result.LeadsError = err.Error()
		result.advance(StageLeadsSkipped)
		return
	}

	if found != nil {
		result.LeadsExtracted = found
	}
	result.Statistics.LeadsCount = len(result.LeadsExtracted)
	if a.collab.LeadStore == nil && len(found) > 0 {
		a.logger.WithField("leads", len(found)).Debug("No lead store configured, leads not persisted")
	}
	result.advance(StageLeadsDone)
}

func (a *Aggregator) finalize(result *Result, start time.Time) {
	s := &result.Statistics
	s.TotalSources = s.APISources + s.WebsailorPages + s.SocialPosts
	s.SearchDuration = a.now().Sub(start).Seconds()
	result.advance(StageFinalized)
}

func (a *Aggregator) report(sessionID string, step int, message string) {
	if a.collab.Progress == nil {
		return
	}
	if err := a.collab.Progress.UpdateProgress(sessionID, step, totalSteps, message); err != nil {
		a.logger.WithError(err).Debug("Failed to record progress")
	}
}

// guard runs fn and turns a panic into an error
func guard(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", stage, r)
		}
	}()
	return fn()
}
