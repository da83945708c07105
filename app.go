package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prt-busca/prt-busca/internal/config"
	"github.com/prt-busca/prt-busca/internal/deepnav"
	"github.com/prt-busca/prt-busca/internal/keyring"
	"github.com/prt-busca/prt-busca/internal/leads"
	"github.com/prt-busca/prt-busca/internal/massivesearch"
	"github.com/prt-busca/prt-busca/internal/registry"
	"github.com/prt-busca/prt-busca/internal/social"
	"github.com/prt-busca/prt-busca/internal/storage"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/exa"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/firecrawl"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/google"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/jina"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/serper"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/unified"
	"github.com/prt-busca/prt-busca/internal/tools/toolhelp"
	"github.com/prt-busca/prt-busca/internal/webpage"
	"github.com/sirupsen/logrus"
)

// stageSwitches turns optional aggregator stages off for a single run
type stageSwitches struct {
	noNavigation bool
	noSocial     bool
}

// app holds every long-lived component built from the configuration
type app struct {
	cfg           *config.Config
	logger        *logrus.Logger
	pool          *keyring.Pool
	coordinator   *unified.Coordinator
	store         *storage.Store
	leadStore     *leads.Store
	screenshotter *social.RodScreenshotter
	aggregator    *massivesearch.Aggregator
	registry      *registry.Registry
}

func newApp(cfg *config.Config, logger *logrus.Logger, switches stageSwitches) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.pool = keyring.LoadFromEnv(nil, keyring.KnownProviders...)
	// one limiter per provider
	limited := func() *internetsearch.RateLimitedHTTPClient {
		return internetsearch.NewRateLimitedHTTPClientWithLimit(cfg.RateLimit)
	}

	a.coordinator = unified.NewCoordinator(a.pool,
		serper.NewSerperProvider(a.pool, cfg.Locale, limited()),
		google.NewGoogleProvider(a.pool, cfg.Locale, limited()),
		exa.NewExaProvider(a.pool, cfg.Locale, limited()),
		firecrawl.NewFirecrawlProvider(a.pool),
		jina.NewJinaProvider(a.pool),
	)
	logger.WithField("providers", a.coordinator.Providers()).Debug("Search coordinator ready")

	store, err := storage.New(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	a.store = store

	leadStore, err := leads.Open(cfg.LeadsDBPath(), logger)
	if err != nil {
		// leads are reported without persistence when the database is unavailable
		logger.WithError(err).Warn("Lead database unavailable, leads will not be persisted")
	} else {
		a.leadStore = leadStore
	}

	fetcher := webpage.NewClient(logger)
	collab := massivesearch.Collaborators{
		LeadExtractor: leads.Extract,
		Progress:      store,
	}
	if a.leadStore != nil {
		collab.LeadStore = a.leadStore
	}

	if cfg.Navigation.Enabled && !switches.noNavigation {
		opts := deepnav.Options{Concurrency: cfg.Navigation.Concurrency}
		if cfg.Navigation.UseReader && a.pool.Has("JINA") {
			opts.Reader = jina.NewReader(a.pool, limited(), logger)
		}
		collab.Navigator = deepnav.New(logger, a.coordinator, fetcher, opts)
	}

	if cfg.Social.Enabled && !switches.noSocial {
		opts := social.Options{SessionDir: store.SessionDir}
		if cfg.Social.Screenshots {
			a.screenshotter = social.NewRodScreenshotter(logger, cfg.Social.BrowserURL)
			opts.Screenshotter = a.screenshotter
		}
		collab.Social = social.New(logger, fetcher, opts)
	}

	a.aggregator = massivesearch.New(logger, a.coordinator, collab, massivesearch.Limits{
		NavMaxPages:    cfg.Navigation.MaxPages,
		NavDepthLevels: cfg.Navigation.DepthLevels,
		SocialMaxPages: cfg.Social.MaxPages,
	})

	a.registry = registry.New(logger, os.Getenv(registry.DisabledToolsEnvVar))
	a.registry.Register(unified.NewInterleavedSearchTool(a.coordinator))
	a.registry.Register(massivesearch.NewTool(a.aggregator, store))
	a.registry.Register(unified.NewProviderStatsTool(a.pool))
	a.registry.Register(toolhelp.New(a.registry))

	return a, nil
}

// Close releases the lead database and the browser, if one was started
func (a *app) Close() error {
	var errs []error
	if a.leadStore != nil {
		errs = append(errs, a.leadStore.Close())
	}
	if a.screenshotter != nil {
		errs = append(errs, a.screenshotter.Close())
	}
	return errors.Join(errs...)
}
