package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"img-scraper/pkg/utils"
)

// ChromeRenderer loads pages in headless Chrome so JavaScript-inserted and
// lazy-loaded images make it into the captured DOM. A fresh browser context
// is created per page; the allocator is shared for the renderer's lifetime.
type ChromeRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	userAgent   string
	pageTimeout time.Duration
	settleDelay time.Duration
	log         *logrus.Logger
}

// NewChromeRenderer starts a headless browser allocator. Close must be called
// to shut the browser down.
func NewChromeRenderer(userAgent string, pageTimeout, settleDelay time.Duration, log *logrus.Logger) *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeRenderer{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		userAgent:   userAgent,
		pageTimeout: pageTimeout,
		settleDelay: settleDelay,
		log:         log,
	}
}

// Render navigates to pageURL, waits for network idle plus the settle delay,
// and returns the rendered outer HTML.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	pageLog := r.log.WithField("url", pageURL)

	// The browser context must descend from the allocator context; the
	// caller's context is bridged in via AfterFunc.
	tCtx, cancelTCtx := context.WithTimeout(r.allocCtx, r.pageTimeout)
	defer cancelTCtx()
	browserCtx, cancel := chromedp.NewContext(tCtx)
	defer cancel()
	stopBridge := context.AfterFunc(ctx, cancel)
	defer stopBridge()

	start := time.Now()
	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Tasks{
			network.Enable(),
			network.SetExtraHTTPHeaders(map[string]interface{}{
				"User-Agent": r.userAgent,
			}),
			enableLifecycleEvents(),
			navigateAndWaitFor(pageURL, "networkIdle"),
			chromedp.Sleep(r.settleDelay),
		},
		chromedp.ActionFunc(func(ctx context.Context) error {
			rootNode, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", utils.ErrRenderFailed, pageURL, err)
	}
	pageLog.WithField("render_time", time.Since(start)).Debug("Page rendered")
	return html, nil
}

// Close shuts down the browser allocator.
func (r *ChromeRenderer) Close() {
	r.allocCancel()
}

func enableLifecycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := page.Enable().Do(ctx); err != nil {
			return err
		}
		return page.SetLifecycleEventsEnabled(true).Do(ctx)
	}
}

func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		return waitFor(ctx, eventName)
	}
}

// waitFor blocks until the named page lifecycle event fires or ctx is done.
func waitFor(ctx context.Context, eventName string) error {
	ch := make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if e.Name == eventName {
				cancel()
				close(ch)
			}
		}
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
