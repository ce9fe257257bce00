package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPProbe checks an HTTP endpoint
type HTTPProbe struct {
	// URL is the full HTTP URL to check (e.g., "http://127.0.0.1:8080/health")
	URL string

	// Method is the HTTP method to use (default: GET)
	Method string

	// Headers are custom HTTP headers to include in the request
	Headers map[string]string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 399)
	ExpectedStatusMax int

	// DegradedAfter marks the component degraded when the round trip
	// exceeds this duration. Zero disables the latency check.
	DegradedAfter time.Duration

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPProbe creates an HTTP probe for the given URL
func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{
		URL:               url,
		Method:            http.MethodGet,
		Headers:           make(map[string]string),
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Client:            &http.Client{},
	}
}

// WithStatusRange sets the acceptable status code range
func (p *HTTPProbe) WithStatusRange(min, max int) *HTTPProbe {
	p.ExpectedStatusMin = min
	p.ExpectedStatusMax = max
	return p
}

// WithHeader adds a custom header to each request
func (p *HTTPProbe) WithHeader(key, value string) *HTTPProbe {
	p.Headers[key] = value
	return p
}

// WithDegradedAfter enables the latency threshold
func (p *HTTPProbe) WithDegradedAfter(d time.Duration) *HTTPProbe {
	p.DegradedAfter = d
	return p
}

// Check performs the HTTP check. The aggregator bounds ctx with the
// probe timeout.
func (p *HTTPProbe) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, nil)
	if err != nil {
		return Result{Status: StatusDown, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	for key, value := range p.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return Result{Status: StatusDown, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	if resp.StatusCode < p.ExpectedStatusMin || resp.StatusCode > p.ExpectedStatusMax {
		return Result{
			Status:  StatusDown,
			Message: fmt.Sprintf("HTTP %d %s (expected %d-%d)", resp.StatusCode, http.StatusText(resp.StatusCode), p.ExpectedStatusMin, p.ExpectedStatusMax),
		}
	}

	if p.DegradedAfter > 0 && elapsed > p.DegradedAfter {
		return Result{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("HTTP %d in %s (threshold %s)", resp.StatusCode, elapsed.Round(time.Millisecond), p.DegradedAfter),
			Details: map[string]interface{}{"latency_ms": elapsed.Milliseconds()},
		}
	}

	return Result{
		Status:  StatusUp,
		Message: fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Details: map[string]interface{}{"latency_ms": elapsed.Milliseconds()},
	}
}
