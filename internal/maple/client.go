// Package maple wraps the maplestory.io API: map search, map details,
// BGM audio streams and map image URLs.
package maple

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"maplebgm-bot/pkg/retrylimit"
)

const (
	defaultBaseURL = "https://maplestory.io/api"
	DefaultRegion  = "gms"
	DefaultVersion = "253"

	searchAttempts = 3
	streamAttempts = 2
)

// ErrStreamUnavailable is returned when the remote source cannot
// deliver a BGM stream for a map.
var ErrStreamUnavailable = errors.New("BGM stream unavailable")

// Client talks to maplestory.io for one region+version namespace.
type Client struct {
	baseURL string
	region  string
	version string
	http    *http.Client
	limiter *retrylimit.AdaptiveLimiter
}

// NewClient creates a client for the given region and version, falling
// back to gms/253 when they are empty.
func NewClient(region, version string) *Client {
	if region == "" {
		region = DefaultRegion
	}
	if version == "" {
		version = DefaultVersion
	}
	return &Client{
		baseURL: defaultBaseURL,
		region:  region,
		version: version,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
	}
}

// Region returns the client's region code.
func (c *Client) Region() string { return c.region }

// Version returns the client's game version.
func (c *Client) Version() string { return c.version }

// mapResult is the subset of the API map object the bot cares about.
type mapResult struct {
	Name       string `json:"name"`
	StreetName string `json:"streetName"`
	ID         int64  `json:"id"`
}

func (c *Client) track(m mapResult) Track {
	return Track{
		MapID:      m.ID,
		MapName:    m.Name,
		StreetName: m.StreetName,
		Region:     c.region,
		Version:    c.version,
	}
}

// SearchMaps looks up maps matching term. Failures are logged and
// reported as an empty result, never as an error.
func (c *Client) SearchMaps(ctx context.Context, term string) []Track {
	endpoint := fmt.Sprintf("%s/%s/%s/map?searchFor=%s",
		c.baseURL, c.region, c.version, url.QueryEscape(term))

	var results []mapResult
	err := retrylimit.WithRetryMax(ctx, func() error {
		return c.getJSON(ctx, endpoint, &results)
	}, c.limiter, searchAttempts)
	if err != nil {
		log.Printf("[ERR] Map search failed for %q: %v", term, err)
		return []Track{}
	}

	tracks := make([]Track, 0, len(results))
	for _, m := range results {
		tracks = append(tracks, c.track(m))
	}
	return tracks
}

// MapDetails fetches metadata for a single map. Returns nil when the
// map cannot be resolved.
func (c *Client) MapDetails(ctx context.Context, mapID int64) *Track {
	endpoint := fmt.Sprintf("%s/%s/%s/map/%d", c.baseURL, c.region, c.version, mapID)

	var result mapResult
	err := retrylimit.WithRetryMax(ctx, func() error {
		return c.getJSON(ctx, endpoint, &result)
	}, c.limiter, searchAttempts)
	if err != nil {
		log.Printf("[ERR] Map details failed for %d: %v", mapID, err)
		return nil
	}
	if result.ID == 0 {
		result.ID = mapID
	}

	t := c.track(result)
	return &t
}

// BGMStream opens the BGM audio stream for a map. The caller owns the
// returned body and must close it.
func (c *Client) BGMStream(ctx context.Context, mapID int64) (io.ReadCloser, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/map/%d/bgm", c.baseURL, c.region, c.version, mapID)

	var body io.ReadCloser
	err := retrylimit.WithRetryMax(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &retrylimit.Fatal{Err: err}
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return statusError(resp.StatusCode, endpoint)
		}
		body = resp.Body
		return nil
	}, c.limiter, streamAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: map %d: %v", ErrStreamUnavailable, mapID, err)
	}
	return body, nil
}

// ImageURL builds the URL of a map's image. With thumbnail set it
// points at the map icon, otherwise at the minimap render. No I/O.
func (c *Client) ImageURL(mapID int64, thumbnail bool) string {
	if thumbnail {
		return fmt.Sprintf("%s/%s/%s/map/%d/icon", c.baseURL, c.region, c.version, mapID)
	}
	return fmt.Sprintf("%s/%s/%s/map/%d/minimap", c.baseURL, c.region, c.version, mapID)
}

// getJSON performs one GET attempt and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &retrylimit.Fatal{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return statusError(resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return nil
}

// statusError classifies a non-200 response. Client errors other than
// 429 will not change on retry, so they abort the attempt loop.
func statusError(code int, endpoint string) error {
	se := &retrylimit.StatusError{Code: code, URL: endpoint}
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return &retrylimit.Fatal{Err: se}
	}
	return se
}
