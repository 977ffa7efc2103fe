package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// maxResponseBytes caps how much of a listing page or API response is read.
	maxResponseBytes = 10 << 20
	// errorBodySnippet bounds response text quoted in a SourceError.
	errorBodySnippet = 200
)

// HTTPFetcher issues GET requests with retries on transport errors, 429 and
// 5xx. Other statuses are returned to the caller untouched.
type HTTPFetcher struct {
	client *http.Client
	policy RetryPolicy
}

// NewHTTPFetcher builds a fetcher. A nil client gets a 30s timeout.
func NewHTTPFetcher(client *http.Client, policy RetryPolicy) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client, policy: policy}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get fetches url with the given headers. A non-nil error means no usable
// response was obtained, including retryable statuses that never recovered.
func (f *HTTPFetcher) Get(ctx context.Context, source, url string, headers map[string]string) (Response, error) {
	var resp Response

	err := Retry(ctx, f.policy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "*/*")
		req.Header.Set("Cache-Control", "no-cache")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		httpResp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return NewRetryableError(fmt.Errorf("http get failed: %w", err))
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return NewRetryableError(fmt.Errorf("failed to read body: %w", err))
		}

		resp = Response{StatusCode: httpResp.StatusCode, Body: body}
		if isRetryableStatus(httpResp.StatusCode) {
			return NewRetryableErrorWithDelay(
				fmt.Errorf("unexpected status code: %d", httpResp.StatusCode),
				parseRetryAfter(httpResp.Header.Get("Retry-After")),
			)
		}
		return nil
	})
	if err != nil {
		srcErr := &SourceError{Source: source, Err: err}
		if resp.StatusCode != 0 {
			srcErr.StatusCode = resp.StatusCode
			srcErr.Message = snippet(resp.Body)
		}
		return Response{}, srcErr
	}

	return resp, nil
}

// statusError converts a non-2xx response into a SourceError.
func statusError(source string, resp Response) *SourceError {
	return &SourceError{
		Source:     source,
		StatusCode: resp.StatusCode,
		Message:    snippet(resp.Body),
	}
}

func snippet(body []byte) string {
	runes := []rune(string(body))
	if len(runes) > errorBodySnippet {
		runes = runes[:errorBodySnippet]
	}
	return string(runes)
}

