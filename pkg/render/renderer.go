package render

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"img-scraper/pkg/fetch"
	"img-scraper/pkg/utils"
)

// Renderer turns a page URL into its HTML. Implementations differ in whether
// JavaScript runs before the DOM is captured.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// StaticRenderer fetches the raw HTML with a plain GET. It is the default for
// sites that do not insert images client-side, and the only renderer used in
// tests.
type StaticRenderer struct {
	fetcher   *fetch.Fetcher
	userAgent string
	log       *logrus.Logger
}

// NewStaticRenderer creates a StaticRenderer on top of the shared fetcher.
func NewStaticRenderer(fetcher *fetch.Fetcher, userAgent string, log *logrus.Logger) *StaticRenderer {
	return &StaticRenderer{fetcher: fetcher, userAgent: userAgent, log: log}
}

// Render performs a GET and returns the response body as a string.
func (r *StaticRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.fetcher.FetchWithRetry(req, ctx)
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err)
	}
	return string(body), nil
}
