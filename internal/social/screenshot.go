package social

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// DefaultScreenshotTimeout bounds loading and capturing one page
const DefaultScreenshotTimeout = 30 * time.Second

// RodScreenshotter captures pages with a headless Chrome driven by rod. The
// browser is started on first use and shared until Close.
type RodScreenshotter struct {
	mu         sync.Mutex
	browser    *rod.Browser
	launcher   *launcher.Launcher
	controlURL string
	timeout    time.Duration
	logger     *logrus.Logger
}

// NewRodScreenshotter creates a screenshotter. An empty controlURL launches
// a local headless Chrome; otherwise it connects to the given DevTools URL.
func NewRodScreenshotter(logger *logrus.Logger, controlURL string) *RodScreenshotter {
	return &RodScreenshotter{
		controlURL: controlURL,
		timeout:    DefaultScreenshotTimeout,
		logger:     logger,
	}
}

// Capture loads pageURL and writes a viewport PNG to path
func (s *RodScreenshotter) Capture(ctx context.Context, pageURL, path string) error {
	browser, err := s.ensureBrowser()
	if err != nil {
		return err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return fmt.Errorf("opening %s: %w", pageURL, err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.WithError(err).Debug("Failed to close browser page")
		}
	}()

	page = page.Timeout(s.timeout)
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("loading %s: %w", pageURL, err)
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("capturing %s: %w", pageURL, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"url": pageURL, "path": path}).Debug("Screenshot captured")
	return nil
}

func (s *RodScreenshotter) ensureBrowser() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		return s.browser, nil
	}

	wsURL := s.controlURL
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.launcher = l
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher = nil
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b
	return b, nil
}

// Close shuts the browser down
func (s *RodScreenshotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	return err
}
