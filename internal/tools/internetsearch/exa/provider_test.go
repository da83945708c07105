package exa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/prt-busca/prt-busca/internal/keyring"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExaProvider_SearchTruncatesText(t *testing.T) {
	longText := strings.Repeat("é", 450)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "exa-key", r.Header.Get("x-api-key"))

		var body searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nutrição esportiva Brasil mercado", body.Query)
		assert.Equal(t, "neural", body.Type)
		assert.True(t, body.UseAutoprompt)
		assert.Equal(t, 10, body.NumResults)

		_, _ = fmt.Fprintf(w, `{"results":[{"title":"Longo","url":"https://l.example","text":%q},{"url":"https://n.example"}]}`, longText)
	}))
	defer srv.Close()

	p := NewExaProvider(keyring.New(map[string][]string{"EXA": {"exa-key"}}), internetsearch.DefaultLocale, srv.Client())
	p.client.baseURL = srv.URL

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	result := p.Search(context.Background(), logger, "nutrição esportiva")
	require.True(t, result.OK(), result.Error())
	require.Len(t, result.Items, 2)
	assert.Equal(t, internetsearch.SnippetLimit, utf8.RuneCountInString(result.Items[0].Snippet))
	assert.Equal(t, "exa", result.Items[0].Source)
	assert.Equal(t, internetsearch.Item{URL: "https://n.example", Source: "exa"}, result.Items[1])
}

func TestExaProvider_NoCredential(t *testing.T) {
	p := NewExaProvider(keyring.New(nil), internetsearch.DefaultLocale, http.DefaultClient)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	result := p.Search(context.Background(), logger, "q")
	assert.ErrorIs(t, result.Err, internetsearch.ErrNoCredential)
	assert.Equal(t, "EXA", result.Provider)
}
