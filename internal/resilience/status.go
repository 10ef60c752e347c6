package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// HTTPError is a response with a failing status code
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s for url: %s", e.Status, e.URL)
}

// CheckStatus returns an HTTPError for status codes >= 400
func CheckStatus(resp *http.Response, url string) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &HTTPError{StatusCode: resp.StatusCode, Status: status, URL: url}
}

// Transient reports whether err points at the remote side being unavailable
// rather than a problem with one particular URL
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
