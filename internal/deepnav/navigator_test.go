package deepnav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prt-busca/prt-busca/internal/massivesearch"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/unified"
	"github.com/prt-busca/prt-busca/internal/webpage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	urls  []string
	query string
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, logger *logrus.Logger, query string) *unified.Outcome {
	f.calls++
	f.query = query
	return &unified.Outcome{Query: query, ConsolidatedURLs: f.urls}
}

type fakeReader struct {
	text string
	err  error
}

func (f *fakeReader) Read(ctx context.Context, pageURL string) (string, error) {
	return f.text, f.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func page(title string, links ...string) string {
	body := "<p>Conteúdo da página " + title + " com texto suficiente para leitura.</p>"
	for _, l := range links {
		body += fmt.Sprintf(`<a href="%s">%s</a>`, l, l)
	}
	return "<html><head><title>" + title + "</title></head><body><article>" + body + "</article></body></html>"
}

func newSite(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/seed":
			_, _ = fmt.Fprint(w, page("Seed", "/a", "/b", "http://other.invalid/x", "/a#dup"))
		case "/a":
			_, _ = fmt.Fprint(w, page("A", "/c", "/seed"))
		case "/b":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/c":
			_, _ = fmt.Fprint(w, page("C"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNavigate_BreadthFirstSameHost(t *testing.T) {
	srv := newSite(t, nil)
	searcher := &fakeSearcher{urls: []string{srv.URL + "/seed", "ftp://files.example.com/x", srv.URL + "/seed"}}
	nav := New(testLogger(), searcher, webpage.NewClientWithDoer(srv.Client()), Options{Concurrency: 2})

	result, err := nav.Navigate(context.Background(), massivesearch.NavigationRequest{
		Query:       "doces",
		Context:     massivesearch.SearchContext{Segmento: "confeitaria", Produto: "bolos"},
		MaxPages:    25,
		DepthLevels: 2,
		SessionID:   "s1",
	})
	require.NoError(t, err)

	assert.Equal(t, "doces confeitaria bolos", searcher.query)
	assert.Equal(t, 2, result.PagesAnalyzed)
	assert.Equal(t, 2, result.DepthReached)
	require.Len(t, result.Pages, 2)
	assert.Equal(t, "Seed", result.Pages[0].Title)
	assert.Equal(t, 0, result.Pages[0].Depth)
	assert.Equal(t, "A", result.Pages[1].Title)
	assert.Equal(t, 1, result.Pages[1].Depth)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "HTTP 500")
}

func TestNavigate_DeeperLevels(t *testing.T) {
	srv := newSite(t, nil)
	nav := New(testLogger(), &fakeSearcher{}, webpage.NewClientWithDoer(srv.Client()), Options{})

	result, err := nav.Navigate(context.Background(), massivesearch.NavigationRequest{Query: "q", SeedURLs: []string{srv.URL + "/seed"}, MaxPages: 25, DepthLevels: 5})
	require.NoError(t, err)

	// seed, a, c; /seed is never revisited and the level after c is empty
	assert.Equal(t, 3, result.PagesAnalyzed)
	assert.Equal(t, 3, result.DepthReached)
}

func TestNavigate_MaxPages(t *testing.T) {
	srv := newSite(t, nil)
	nav := New(testLogger(), &fakeSearcher{}, webpage.NewClientWithDoer(srv.Client()), Options{})

	result, err := nav.Navigate(context.Background(), massivesearch.NavigationRequest{Query: "q", SeedURLs: []string{srv.URL + "/seed"}, MaxPages: 1, DepthLevels: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesAnalyzed)
	assert.Equal(t, 1, result.DepthReached)
}

func TestNavigate_UsesPageCache(t *testing.T) {
	var hits int32
	srv := newSite(t, &hits)
	nav := New(testLogger(), &fakeSearcher{}, webpage.NewClientWithDoer(srv.Client()), Options{})
	req := massivesearch.NavigationRequest{Query: "q", SeedURLs: []string{srv.URL + "/seed"}, MaxPages: 10, DepthLevels: 2}

	first, err := nav.Navigate(context.Background(), req)
	require.NoError(t, err)
	before := atomic.LoadInt32(&hits)

	second, err := nav.Navigate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.PagesAnalyzed, second.PagesAnalyzed)
	// only the failing page is requested again
	assert.Equal(t, before+1, atomic.LoadInt32(&hits))
}

func TestNavigate_ReaderFallback(t *testing.T) {
	srv := newSite(t, nil)
	reader := &fakeReader{text: "Title: Página B\n\nConteúdo lido"}
	nav := New(testLogger(), &fakeSearcher{}, webpage.NewClientWithDoer(srv.Client()), Options{Reader: reader})

	result, err := nav.Navigate(context.Background(), massivesearch.NavigationRequest{Query: "q", SeedURLs: []string{srv.URL + "/b"}, MaxPages: 5, DepthLevels: 2})
	require.NoError(t, err)
	require.Equal(t, 1, result.PagesAnalyzed)
	assert.Equal(t, "Página B", result.Pages[0].Title)
	assert.Contains(t, result.Pages[0].Markdown, "Conteúdo lido")
	assert.Empty(t, result.Errors)

	reader.err = errors.New("quota exceeded")
	nav = New(testLogger(), &fakeSearcher{}, webpage.NewClientWithDoer(srv.Client()), Options{Reader: reader})
	result, err = nav.Navigate(context.Background(), massivesearch.NavigationRequest{Query: "q", SeedURLs: []string{srv.URL + "/b"}, MaxPages: 5, DepthLevels: 2})
	require.NoError(t, err)
	assert.Zero(t, result.PagesAnalyzed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "quota exceeded")
}

func TestNavigate_InvalidLimits(t *testing.T) {
	nav := New(testLogger(), &fakeSearcher{}, webpage.NewClientWithDoer(http.DefaultClient), Options{})
	_, err := nav.Navigate(context.Background(), massivesearch.NavigationRequest{Query: "q", MaxPages: 0, DepthLevels: 2})
	assert.Error(t, err)
}

func TestNavigate_NoSeeds(t *testing.T) {
	nav := New(testLogger(), &fakeSearcher{}, webpage.NewClientWithDoer(http.DefaultClient), Options{})
	result, err := nav.Navigate(context.Background(), massivesearch.NavigationRequest{Query: "q", MaxPages: 5, DepthLevels: 2})
	require.NoError(t, err)
	assert.Zero(t, result.PagesAnalyzed)
	assert.NotNil(t, result.Pages)
}

func TestNavigate_SeedsWithoutContextSkipSearch(t *testing.T) {
	srv := newSite(t, nil)
	searcher := &fakeSearcher{urls: []string{srv.URL + "/a"}}
	nav := New(testLogger(), searcher, webpage.NewClientWithDoer(srv.Client()), Options{})

	result, err := nav.Navigate(context.Background(), massivesearch.NavigationRequest{
		Query:       "doces",
		Context:     massivesearch.SearchContext{Publico: "noivas", Extra: map[string]string{"regiao": "sudeste"}},
		SeedURLs:    []string{srv.URL + "/seed"},
		MaxPages:    1,
		DepthLevels: 1,
	})
	require.NoError(t, err)

	assert.Zero(t, searcher.calls)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, "Seed", result.Pages[0].Title)
}

func TestNavigate_ContextTermsAddSearchAfterSeeds(t *testing.T) {
	srv := newSite(t, nil)
	searcher := &fakeSearcher{urls: []string{srv.URL + "/a", srv.URL + "/seed"}}
	nav := New(testLogger(), searcher, webpage.NewClientWithDoer(srv.Client()), Options{})

	result, err := nav.Navigate(context.Background(), massivesearch.NavigationRequest{
		Query:       "doces",
		Context:     massivesearch.SearchContext{Produto: "bolos"},
		SeedURLs:    []string{srv.URL + "/seed"},
		MaxPages:    10,
		DepthLevels: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, "doces bolos", searcher.query)
	require.Len(t, result.Pages, 2)
	assert.Equal(t, "Seed", result.Pages[0].Title)
	assert.Equal(t, "A", result.Pages[1].Title)
}

func TestSeedQuery(t *testing.T) {
	assert.Equal(t, "doces", SeedQuery(" doces ", massivesearch.SearchContext{}))
	assert.Equal(t, "doces bolos", SeedQuery("doces", massivesearch.SearchContext{Produto: "bolos", Publico: "mães"}))
}
