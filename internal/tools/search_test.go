package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `
<html><body>
<div class="result__body">
  <h2 class="result__title">Go (programming language)</h2>
  <a class="result__snippet">Go is a statically typed, compiled language.</a>
</div>
<div class="result__body">
  <h2 class="result__title">The Go Programming Language</h2>
  <a class="result__snippet">Build simple, secure, scalable systems with Go.</a>
</div>
<div class="result__body">
  <h2 class="result__title">Empty snippet is skipped</h2>
  <a class="result__snippet"></a>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	snippets, err := ParseResults(strings.NewReader(resultsPage), 5)
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Equal(t, "Go (programming language): Go is a statically typed, compiled language.", snippets[0])
}

func TestParseResults_Limit(t *testing.T) {
	snippets, err := ParseResults(strings.NewReader(resultsPage), 1)
	require.NoError(t, err)
	assert.Len(t, snippets, 1)
}

func TestSearch_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "capital of france", r.Form.Get("q"))
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	s := NewSearch("us-en", 5, 5*time.Second)
	s.endpoint = srv.URL

	out, err := s.Call(context.Background(), map[string]any{"query": "capital of france"})
	require.NoError(t, err)

	text, ok := out.(string)
	require.True(t, ok)
	assert.Contains(t, text, "statically typed")
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := NewSearch("", 0, 0)

	out, err := s.Call(context.Background(), map[string]any{"query": "  "})
	require.NoError(t, err)

	result, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, result, "error")
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSearch("us-en", 5, 5*time.Second)
	s.endpoint = srv.URL

	_, err := s.Call(context.Background(), map[string]any{"query": "anything"})
	assert.Error(t, err)
}
