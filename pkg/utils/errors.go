package utils

import (
	"context"
	"errors"
	"net"
	"strings"

	"img-scraper/pkg/models"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed     = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError  = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status

	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrRenderFailed     = errors.New("page render failed")
	ErrImageDecode      = errors.New("image decode failed")
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("state store error")
	ErrParsing          = errors.New("parsing error")
	ErrConfigValidation = errors.New("configuration validation error")
)

// CategorizeFailure maps an error onto the pipeline's failure taxonomy.
// Per-image errors are recorded on the record with this reason; the error
// itself never aborts the run.
func CategorizeFailure(err error) models.FailureReason {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrImageDecode):
		return models.ReasonInvalidFormat
	case errors.Is(err, ErrRetryFailed),
		errors.Is(err, ErrClientHTTPError),
		errors.Is(err, ErrServerHTTPError),
		errors.Is(err, ErrOtherHTTPError),
		errors.Is(err, ErrRequestCreation),
		errors.Is(err, ErrResponseBodyRead):
		return models.ReasonDownloadError
	case errors.Is(err, ErrFilesystem):
		return models.ReasonSaveError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.ReasonDownloadError
	}

	// Network errors that escaped the sentinels above
	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.ReasonDownloadError
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection refused", "connection reset", "no such host", "tls", "broken pipe", "eof"} {
		if strings.Contains(msg, marker) {
			return models.ReasonDownloadError
		}
	}

	return models.ReasonOther
}
