package geocode

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/elevityx/truckeelights/internal/adapters/observability"
	"github.com/elevityx/truckeelights/internal/domain"
)

// Client talks to a Nominatim-compatible geocoding API. Public instances
// enforce an absolute-1-rps policy, hence the client-side limiter.
type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("geocode base URL is required")
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type reverseResult struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Forward resolves an address to coordinates plus the provider's canonical
// display address.
func (c *Client) Forward(ctx context.Context, address string) (domain.Location, string, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	start := time.Now()
	var out []searchResult
	err := c.get(ctx, c.base+"/search?"+q.Encode(), &out)
	observability.ObserveGeocode("forward", statusOf(err), time.Since(start))
	if err != nil {
		return domain.Location{}, "", fmt.Errorf("%w: %v", domain.ErrGeocodeFailed, err)
	}
	if len(out) == 0 {
		return domain.Location{}, "", domain.ErrNoResult
	}
	lat, err1 := strconv.ParseFloat(out[0].Lat, 64)
	lng, err2 := strconv.ParseFloat(out[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return domain.Location{}, "", fmt.Errorf("%w: bad coordinates %q,%q", domain.ErrGeocodeFailed, out[0].Lat, out[0].Lon)
	}
	return domain.Location{Lat: lat, Lng: lng}, out[0].DisplayName, nil
}

// Reverse resolves a map click to the nearest address.
func (c *Client) Reverse(ctx context.Context, loc domain.Location) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	q.Set("format", "jsonv2")

	start := time.Now()
	var out reverseResult
	err := c.get(ctx, c.base+"/reverse?"+q.Encode(), &out)
	observability.ObserveGeocode("reverse", statusOf(err), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeocodeFailed, err)
	}
	// Nominatim reports "unable to geocode" inside a 200 body.
	if out.Error != "" || out.DisplayName == "" {
		return "", domain.ErrNoResult
	}
	return out.DisplayName, nil
}

func statusOf(err error) int {
	if err == nil {
		return 200
	}
	return 0
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "truckeelights/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNoResult

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}

var _ domain.Geocoder = (*Client)(nil)
