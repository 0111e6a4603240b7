// Package analysis runs the full ViewScout pipeline for one observer:
// viewshed, water detection and scoring, with request limits, timeouts,
// metrics and last-request-wins sessions.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/internal/metrics"
	"github.com/unklstewy/viewscout/pkg/config"
	"github.com/unklstewy/viewscout/pkg/score"
	"github.com/unklstewy/viewscout/pkg/terrain"
	"github.com/unklstewy/viewscout/pkg/viewshed"
	"github.com/unklstewy/viewscout/pkg/water"
)

// Rating buckets a score for display.
type Rating string

const (
	RatingGood Rating = "good"
	RatingFair Rating = "fair"
	RatingPoor Rating = "poor"
)

// Rate maps a score total to its rating.
func Rate(total int) Rating {
	switch {
	case total >= 70:
		return RatingGood
	case total >= 40:
		return RatingFair
	default:
		return RatingPoor
	}
}

// Request describes one analysis. Use Service.NewRequest for defaults.
type Request struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	ObserverHeight   float64 `json:"observerHeight"`
	RadiusMeters     float64 `json:"radius"`
	NumAzimuths      int     `json:"azimuths"`
	NumSamplesPerRay int     `json:"samples"`
}

// Params converts the request to viewshed parameters.
func (r Request) Params() viewshed.Params {
	return viewshed.Params{
		Lon:              r.Lon,
		Lat:              r.Lat,
		ObserverHeight:   r.ObserverHeight,
		RadiusMeters:     r.RadiusMeters,
		NumAzimuths:      r.NumAzimuths,
		NumSamplesPerRay: r.NumSamplesPerRay,
	}
}

// Report is the complete outcome of one analysis.
type Report struct {
	ID        uuid.UUID        `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
	Request   Request          `json:"request"`
	Result    *viewshed.Result `json:"viewshed"`
	Water     water.Visibility `json:"water"`
	Score     score.Score      `json:"score"`
	Rating    Rating           `json:"rating"`

	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"durationMs"`
}

// ProfileRequest describes an elevation profile between two points.
type ProfileRequest struct {
	FromLat    float64
	FromLon    float64
	ToLat      float64
	ToLon      float64
	NumSamples int
}

// Service runs analyses against one terrain sampler.
// It is safe for concurrent use.
type Service struct {
	sampler terrain.Sampler
	cfg     config.AnalysisConfig
}

// NewService creates an analysis service.
func NewService(sampler terrain.Sampler, cfg config.AnalysisConfig) *Service {
	return &Service{sampler: sampler, cfg: cfg}
}

// Config returns the analysis defaults and limits.
func (s *Service) Config() config.AnalysisConfig {
	return s.cfg
}

// NewRequest returns a request for a point with the configured defaults.
func (s *Service) NewRequest(lat, lon float64) Request {
	return Request{
		Lat:              lat,
		Lon:              lon,
		ObserverHeight:   s.cfg.ObserverHeight,
		RadiusMeters:     s.cfg.RadiusMeters,
		NumAzimuths:      s.cfg.NumAzimuths,
		NumSamplesPerRay: s.cfg.NumSamplesPerRay,
	}
}

// checkLimits rejects requests larger than the service allows.
func (s *Service) checkLimits(req Request) error {
	if s.cfg.MaxRadiusMeters > 0 && req.RadiusMeters > s.cfg.MaxRadiusMeters {
		return fmt.Errorf("%w: radius %.0f m exceeds limit of %.0f m",
			viewshed.ErrInvalidParams, req.RadiusMeters, s.cfg.MaxRadiusMeters)
	}
	if s.cfg.MaxPoints > 0 && req.NumAzimuths > 0 && req.NumSamplesPerRay > 0 &&
		req.NumAzimuths*req.NumSamplesPerRay > s.cfg.MaxPoints {
		return fmt.Errorf("%w: %d×%d samples exceeds limit of %d",
			viewshed.ErrInvalidParams, req.NumAzimuths, req.NumSamplesPerRay, s.cfg.MaxPoints)
	}
	return nil
}

// Analyze computes the viewshed, then water visibility and the
// terrain score terms concurrently, and combines them into a report.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	log := logging.Component("analysis")

	if err := s.checkLimits(req); err != nil {
		metrics.RecordAnalysis(outcome(err), time.Since(start))
		return nil, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	result, err := viewshed.Compute(ctx, s.sampler, req.Params())
	if err != nil {
		metrics.RecordAnalysis(outcome(err), time.Since(start))
		if !errors.Is(err, viewshed.ErrInvalidParams) && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Float64("lat", req.Lat).Float64("lon", req.Lon).Msg("viewshed failed")
		}
		return nil, err
	}

	vis, partial, err := evaluate(ctx, result)
	if err != nil {
		metrics.RecordAnalysis(outcome(err), time.Since(start))
		return nil, fmt.Errorf("failed to evaluate viewshed: %w", err)
	}

	sc := score.Combine(partial, vis)
	elapsed := time.Since(start)

	report := &Report{
		ID:         uuid.New(),
		CreatedAt:  start.UTC(),
		Request:    req,
		Result:     result,
		Water:      vis,
		Score:      sc,
		Rating:     Rate(sc.Total),
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}

	metrics.RecordAnalysis("ok", elapsed)
	metrics.ViewScore.Observe(float64(sc.Total))
	log.Info().
		Str("id", report.ID.String()).
		Float64("lat", req.Lat).
		Float64("lon", req.Lon).
		Float64("height", req.ObserverHeight).
		Int("score", sc.Total).
		Str("water", string(vis.Classification)).
		Dur("duration", elapsed).
		Msg("analysis complete")

	return report, nil
}

// evaluate runs water detection and the terrain score terms concurrently.
// Neither starts once ctx is done.
func evaluate(ctx context.Context, result *viewshed.Result) (water.Visibility, score.Breakdown, error) {
	var (
		vis     water.Visibility
		partial score.Breakdown
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		vis = water.Detect(result)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		partial = score.Terrain(result)
		return nil
	})
	if err := g.Wait(); err != nil {
		return water.Visibility{}, score.Breakdown{}, err
	}
	return vis, partial, nil
}

// Profile samples the terrain between two points.
func (s *Service) Profile(ctx context.Context, req ProfileRequest) ([]viewshed.ProfilePoint, error) {
	n := req.NumSamples
	if n == 0 {
		n = s.cfg.ProfileSamples
	}
	if s.cfg.MaxPoints > 0 && n+1 > s.cfg.MaxPoints {
		return nil, fmt.Errorf("%w: %d profile samples exceeds limit of %d", viewshed.ErrInvalidParams, n, s.cfg.MaxPoints)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	return viewshed.Profile(ctx, s.sampler, req.FromLon, req.FromLat, req.ToLon, req.ToLat, n)
}

// outcome labels an analysis error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, viewshed.ErrInvalidParams):
		return "invalid"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "terrain_error"
	}
}
