package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"img-scraper/pkg/utils"
)

// Fetcher performs HTTP requests with retry logic over an underlying http.Client.
// Transient failures (network errors, 5xx, 429) are retried with exponential
// backoff and jitter; other 4xx responses are returned immediately.
type Fetcher struct {
	client       *http.Client
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	log          *logrus.Logger
}

// NewFetcher creates a Fetcher. Zero delays fall back to 1s initial / 15s max.
func NewFetcher(client *http.Client, maxRetries int, initialDelay, maxDelay time.Duration, log *logrus.Logger) *Fetcher {
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 15 * time.Second
	}
	return &Fetcher{
		client:       client,
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		log:          log,
	}
}

// FetchWithRetry executes the request, retrying transient failures.
// On success (2xx) the caller owns resp.Body. For non-retryable statuses the
// response is returned alongside a wrapped sentinel error and the caller must
// still close the body.
func (f *Fetcher) FetchWithRetry(req *http.Request, ctx context.Context) (*http.Response, error) {
	var lastErr error
	var resp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		// Bail out early if the context is already done
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry after error: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", ctx.Err())
		default:
		}

		if attempt > 0 {
			delay := f.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": f.maxRetries, "delay": delay}).Warn("Retrying request...")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
			}
		}

		resp, lastErr = f.client.Do(req.WithContext(ctx))

		if lastErr != nil {
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				drain(resp)
				return nil, lastErr
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", lastErr)
			drain(resp)
			continue
		}

		statusCode := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			return resp, nil

		case statusCode >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, resp.Status)
			drain(resp)
			continue

		case statusCode == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)
			drain(resp)
			continue

		case statusCode >= 400 && statusCode < 500:
			resLog.Warn("Client error (4xx), not retrying")
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)

		default:
			resLog.Warnf("Non-retryable status: %d", statusCode)
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, resp.Status)
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", f.maxRetries+1, lastErr)
	drain(resp)
	if lastErr != nil {
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return nil, utils.ErrRetryFailed
}

// backoff returns initial * 2^(attempt-1) capped at maxDelay, with +/-10% jitter.
func (f *Fetcher) backoff(attempt int) time.Duration {
	raw := float64(f.initialDelay) * math.Pow(2, float64(attempt-1))
	delay := time.Duration(raw)
	if delay <= 0 || delay > f.maxDelay {
		delay = f.maxDelay
	}
	var jitter time.Duration
	if delay > 0 {
		jitterRange := int64(delay) / 5
		if jitterRange > 0 {
			jitter = time.Duration(rand.Int63n(jitterRange)) - (delay / 10)
		}
	}
	final := delay + jitter
	if final < 0 {
		final = 0
	}
	return final
}

// drain discards and closes a response body before a retry or final return.
func drain(resp *http.Response) {
	if resp != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
