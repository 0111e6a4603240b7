package terrain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/internal/metrics"
	"github.com/unklstewy/viewscout/pkg/geodesy"
)

const (
	// DefaultBaseURL is the public OpenTopoData instance
	DefaultBaseURL = "https://api.opentopodata.org"

	// DefaultDataset is the 30m global SRTM-derived dataset
	DefaultDataset = "srtm30m"

	// DefaultTimeout for API requests
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBatchSize is the public API's limit of locations per request
	DefaultMaxBatchSize = 100
)

// OpenTopoConfig contains configuration for the OpenTopoData client.
type OpenTopoConfig struct {
	BaseURL string
	Dataset string

	// MaxBatchSize is the number of locations per HTTP request
	MaxBatchSize int

	// MaxConcurrency bounds the number of in-flight HTTP requests per call
	MaxConcurrency int

	// RequestsPerSecond and Burst configure the client-side rate limiter.
	// RequestsPerSecond <= 0 disables limiting.
	RequestsPerSecond float64
	Burst             int

	Timeout time.Duration
	Retry   RetryConfig

	// BreakerFailures is the number of consecutive failed calls that opens
	// the circuit; BreakerCooldown is how long it stays open.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// OpenTopoClient samples elevations from an OpenTopoData-compatible API.
//
// A single SampleElevations call is split into MaxBatchSize chunks which are
// fetched concurrently; the caller still sees one round trip.
type OpenTopoClient struct {
	baseURL        string
	dataset        string
	maxBatchSize   int
	maxConcurrency int
	httpClient     *http.Client
	rateLimiter    *rate.Limiter
	retry          RetryConfig
	breaker        *gobreaker.CircuitBreaker[[]Sample]
}

// NewOpenTopoClient creates a new OpenTopoData client.
func NewOpenTopoClient(cfg OpenTopoConfig) *OpenTopoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	log := logging.Component("terrain")
	breaker := gobreaker.NewCircuitBreaker[[]Sample](gobreaker.Settings{
		Name:    "opentopodata",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// A cancelled analysis says nothing about service health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("terrain circuit breaker state changed")
		},
	})

	return &OpenTopoClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		dataset:        cfg.Dataset,
		maxBatchSize:   cfg.MaxBatchSize,
		maxConcurrency: cfg.MaxConcurrency,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		rateLimiter:    rate.NewLimiter(limit, cfg.Burst),
		retry:          cfg.Retry,
		breaker:        breaker,
	}
}

// SampleElevations implements Sampler.
func (c *OpenTopoClient) SampleElevations(ctx context.Context, points []geodesy.Point) ([]Sample, error) {
	if len(points) == 0 {
		return []Sample{}, nil
	}

	samples, err := c.breaker.Execute(func() ([]Sample, error) {
		return c.fetchAll(ctx, points)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	metrics.TerrainPoints.WithLabelValues("remote").Add(float64(len(points)))
	return samples, nil
}

func (c *OpenTopoClient) fetchAll(ctx context.Context, points []geodesy.Point) ([]Sample, error) {
	out := make([]Sample, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)

	for start := 0; start < len(points); start += c.maxBatchSize {
		start := start
		end := min(start+c.maxBatchSize, len(points))
		chunk := points[start:end]

		g.Go(func() error {
			samples, err := RetryWithBackoff(gctx, c.retry, func() ([]Sample, error) {
				return c.fetchChunk(gctx, chunk)
			})
			if err != nil {
				return fmt.Errorf("failed to sample points %d-%d: %w", start, end-1, err)
			}
			if err := CheckLength(chunk, samples); err != nil {
				return err
			}
			copy(out[start:end], samples)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchChunk performs one HTTP request for at most maxBatchSize points.
func (c *OpenTopoClient) fetchChunk(ctx context.Context, points []geodesy.Point) ([]Sample, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(points), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordTerrainRequest("error", time.Since(start))
		return nil, fmt.Errorf("failed to fetch elevations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RecordTerrainRequest("rate_limited", time.Since(start))
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "terrain API rate limit exceeded",
		}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RecordTerrainRequest("error", time.Since(start))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var apiResp openTopoResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		metrics.RecordTerrainRequest("error", time.Since(start))
		return nil, fmt.Errorf("failed to parse terrain response: %w", err)
	}
	metrics.RecordTerrainRequest("ok", time.Since(start))

	if apiResp.Status != "OK" {
		return nil, fmt.Errorf("terrain API status %s: %s", apiResp.Status, apiResp.Error)
	}
	if len(apiResp.Results) != len(points) {
		return nil, fmt.Errorf("terrain API returned %d results for %d locations", len(apiResp.Results), len(points))
	}

	samples := make([]Sample, len(points))
	for i, r := range apiResp.Results {
		samples[i] = Sample{
			Lat:    r.Location.Lat,
			Lon:    r.Location.Lng,
			Height: r.Elevation,
		}
	}
	return samples, nil
}

func (c *OpenTopoClient) requestURL(points []geodesy.Point) string {
	locs := make([]string, len(points))
	for i, p := range points {
		locs[i] = strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lon, 'f', 6, 64)
	}

	q := url.Values{}
	q.Set("locations", strings.Join(locs, "|"))
	return fmt.Sprintf("%s/v1/%s?%s", c.baseURL, c.dataset, q.Encode())
}

// openTopoResponse is the JSON body returned by OpenTopoData.
type openTopoResponse struct {
	Status  string           `json:"status"`
	Error   string           `json:"error,omitempty"`
	Results []openTopoResult `json:"results"`
}

type openTopoResult struct {
	Dataset string `json:"dataset"`

	// Elevation is null outside the dataset's coverage
	Elevation *float64 `json:"elevation"`

	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}
