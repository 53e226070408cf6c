package render

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-scraper/pkg/fetch"
	"img-scraper/pkg/utils"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newStatic(t *testing.T) *StaticRenderer {
	t.Helper()
	fetcher := fetch.NewFetcher(&http.Client{Timeout: 5 * time.Second}, 1, time.Millisecond, 5*time.Millisecond, testLogger())
	return NewStaticRenderer(fetcher, "img-scraper/1.0", testLogger())
}

func TestStaticRenderer_ReturnsHTML(t *testing.T) {
	const body = `<html><body><img src="a.jpg"></body></html>`
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		io.WriteString(w, body)
	}))
	defer server.Close()

	html, err := newStatic(t).Render(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, body, html)
	assert.Equal(t, "img-scraper/1.0", gotAgent)
}

func TestStaticRenderer_PropagatesFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newStatic(t).Render(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrClientHTTPError)
}
