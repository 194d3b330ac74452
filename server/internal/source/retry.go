package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/facultyload/facultyload/server/internal/config"
)

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 16 << 20

// HTTPError carries the status and a body excerpt of a non-2xx response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 200))
}

// retryStatuses are retried in addition to every 5xx.
var retryStatuses = map[int]bool{
	http.StatusRequestTimeout:  true,
	http.StatusTooEarly:        true,
	http.StatusTooManyRequests: true,
}

// doWithRetry executes a request built by buildReq, retrying network errors
// and retryable statuses up to policy.MaxAttempts times. The body is read and
// decoded according to Content-Encoding before it is returned.
func doWithRetry(
	ctx context.Context,
	client *http.Client,
	buildReq func(context.Context) (*http.Request, error),
	policy config.RetryConfig,
) ([]byte, error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := buildReq(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			if !isRetryableNetErr(err) {
				return nil, err
			}
			lastErr = err
			if attempt < attempts {
				if err := sleepBackoff(ctx, attempt, policy, 0); err != nil {
					return nil, err
				}
			}
			continue
		}

		body, readErr := readBody(resp)
		if readErr != nil {
			lastErr = readErr
			if isRetryableNetErr(readErr) && attempt < attempts {
				if err := sleepBackoff(ctx, attempt, policy, 0); err != nil {
					return nil, err
				}
				continue
			}
			return nil, readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		herr := &HTTPError{
			Method:     req.Method,
			URL:        redactURL(req.URL.String()),
			StatusCode: resp.StatusCode,
			Body:       body,
		}
		if !isRetryableStatus(resp.StatusCode) {
			return nil, herr
		}
		lastErr = herr
		if attempt < attempts {
			if err := sleepBackoff(ctx, attempt, policy, parseRetryAfter(resp)); err != nil {
				return nil, err
			}
		}
	}

	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return nil, lastErr
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	r, err := decodedReader(resp.Header.Get("Content-Encoding"), io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func isRetryableStatus(code int) bool {
	return retryStatuses[code] || (code >= 500 && code <= 599)
}

func sleepBackoff(ctx context.Context, attempt int, policy config.RetryConfig, retryAfter time.Duration) error {
	sleep := retryAfter
	if sleep <= 0 {
		sleep = policy.BaseDelay * time.Duration(1<<(attempt-1))
		if policy.MaxDelay > 0 && sleep > policy.MaxDelay {
			sleep = policy.MaxDelay
		}
		if half := int64(sleep / 2); half > 0 {
			sleep += time.Duration(rand.Int63n(half))
		}
	}
	if policy.MaxDelay > 0 && sleep > policy.MaxDelay {
		sleep = policy.MaxDelay
	}

	t := time.NewTimer(sleep)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isRetryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}

// parseRetryAfter parses a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// redactURL drops the query string, which may carry script parameters.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
