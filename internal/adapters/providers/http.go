// Package providers holds the HTTP clients for the external map, geocoding
// and language-model APIs.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

const tracerName = "github.com/samirrijal/tripplanner/internal/adapters/providers"

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (e *httpStatusError) retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// client is the retrying JSON transport shared by every provider.
type client struct {
	http       *http.Client
	maxRetries int
	initial    time.Duration
}

func newClient(httpClient *http.Client, maxRetries int) *client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &client{http: httpClient, maxRetries: maxRetries, initial: 200 * time.Millisecond}
}

func (c *client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return b, nil
}

// getJSON runs makeReq with exponential backoff on network errors, 429 and
// 5xx, then decodes the body into out. The whole call is one span.
func (c *client) getJSON(ctx context.Context, span string, makeReq func(context.Context) (*http.Request, error), out any) error {
	ctx, sp := otel.Tracer(tracerName).Start(ctx, span)
	defer sp.End()

	attempts := 0
	op := func() ([]byte, error) {
		attempts++
		req, err := makeReq(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		body, err := c.do(req)
		if err == nil {
			return body, nil
		}

		var he *httpStatusError
		if errors.As(err, &he) && he.retryable() {
			return nil, err
		}
		var netErr net.Error
		if errors.As(err, &netErr) && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initial
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxRetries)), ctx)

	body, err := backoff.RetryWithData(op, policy)
	sp.SetAttributes(attribute.Int("http.attempts", attempts))
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", span, err)
	}
	return nil
}

// networkFailure tags transport errors so callers can match domain.ErrNetworkFailure.
func networkFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrNetworkFailure, err)
}

// coordinatePath renders points as "lng,lat;lng,lat" for the routing APIs.
func coordinatePath(points []domain.Coordinate) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
	}
	return strings.Join(parts, ";")
}

// lineString converts GeoJSON [lng, lat] pairs to coordinates.
func lineString(coords [][]float64) []domain.Coordinate {
	out := make([]domain.Coordinate, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		out = append(out, domain.Coordinate{Lat: c[1], Lng: c[0]})
	}
	return out
}
