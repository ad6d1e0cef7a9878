// Package source implements the external bibliographic source adapters
// (C7, §4.7) and their federation (C8, §4.8).
package source

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/breaker"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/ratelimit"
)

// Request is what an adapter's buildRequest hook produces.
type Request struct {
	URL     string
	Params  map[string]string
	Headers map[string]string
}

// adapter is the template-method shape every source implements: the driver
// owns rate-limit/circuit-break/timeout plumbing (one attempt per call, no
// retry); each adapter only
// knows how to build a request and parse its own response shape (§4.7).
type adapter interface {
	sourceName() string
	buildRequest(query, theme, language string) (Request, error)
	parseResponse(body []byte, contentType string) ([]model.Paper, error)
	// configured reports whether this adapter has what it needs (e.g. an
	// API key) to make a call at all. Unconfigured sources are skipped
	// with ok=true, papers=[] per §4.7.
	configured() bool
}

// driver runs the shared request lifecycle for any adapter, grounded on
// internal/gcpclient/embedding.go's withRetry shape adapted to a single
// attempt plus rate-limit/circuit-break gating instead of blind retry,
// since a 429/5xx here is the circuit breaker's signal, not a retry cue.
type driver struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *breaker.Breaker
	timeout    time.Duration
}

func newDriver(httpClient *http.Client, limiter *ratelimit.Limiter, brk *breaker.Breaker, timeout time.Duration) *driver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &driver{httpClient: httpClient, limiter: limiter, breaker: brk, timeout: timeout}
}

// call executes one adapter invocation end to end, per the shared driver
// algorithm in §4.7: rate limit, circuit breaker, timeout-bounded request,
// response classification.
func (d *driver) call(ctx context.Context, a adapter, query, theme, language string) model.SourceEnvelope {
	start := time.Now()
	name := a.sourceName()

	if !a.configured() {
		return model.SourceEnvelope{Source: name, OK: true}
	}

	if !d.limiter.TryAcquire(name) {
		return model.SourceEnvelope{Source: name, OK: false, Error: "rate_limited", LatencyMS: time.Since(start).Milliseconds()}
	}

	allowed, _ := d.breaker.Allow(name)
	if !allowed {
		return model.SourceEnvelope{Source: name, OK: false, Error: "circuit_open", LatencyMS: time.Since(start).Milliseconds()}
	}

	req, err := a.buildRequest(query, theme, language)
	if err != nil {
		return model.SourceEnvelope{Source: name, OK: false, Error: err.Error(), LatencyMS: time.Since(start).Milliseconds()}
	}

	papers, ok, errMsg := d.doRequest(ctx, a, req)
	switch {
	case ok:
		d.breaker.RecordSuccess(name)
	case isCircuitSignal(errMsg):
		d.breaker.RecordFailure(name)
	}
	// Non-fatal failures (client_error, parse_error, unexpected_status) leave
	// the breaker untouched: neither a trip nor a reset (§4.7).

	return model.SourceEnvelope{
		Papers:    papers,
		Source:    name,
		OK:        ok,
		LatencyMS: time.Since(start).Milliseconds(),
		Error:     errMsg,
	}
}

func (d *driver) doRequest(ctx context.Context, a adapter, r Request) ([]model.Paper, bool, string) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, false, "network_error"
	}
	q := httpReq.URL.Query()
	for k, v := range r.Params {
		q.Set(k, v)
	}
	httpReq.URL.RawQuery = q.Encode()
	for k, v := range r.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, "timeout"
		}
		return nil, false, "network_error"
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, "network_error"
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		papers, err := a.parseResponse(body, resp.Header.Get("Content-Type"))
		if err != nil {
			return nil, false, "parse_error"
		}
		return papers, true, ""
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, "rate_limited_upstream"
	case resp.StatusCode >= 500:
		return nil, false, "server_error"
	case resp.StatusCode >= 400:
		// Non-fatal per §4.7: reported as a failed call but does not
		// trip the circuit breaker.
		return nil, false, "client_error"
	default:
		return nil, false, "unexpected_status"
	}
}

// isCircuitSignal reports whether errMsg should count against the circuit
// breaker: 429/5xx/timeout/network error, per §4.7. client_error (4xx other
// than 429) does not.
func isCircuitSignal(errMsg string) bool {
	switch errMsg {
	case "rate_limited_upstream", "server_error", "timeout", "network_error":
		return true
	default:
		return false
	}
}
