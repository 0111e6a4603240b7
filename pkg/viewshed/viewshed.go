// Package viewshed computes line-of-sight coverage around an observer by
// casting azimuthal rays over sampled terrain.
//
// Each ray is walked near-to-far keeping the running maximum elevation
// angle; a sample is visible only when it rises strictly above every nearer
// sample on the same ray. Elevations are lowered by the first-order earth
// curvature drop d²/2R before the angle is taken.
package viewshed

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/unklstewy/viewscout/pkg/geodesy"
	"github.com/unklstewy/viewscout/pkg/terrain"
)

// ErrInvalidParams is returned for degenerate analysis parameters.
var ErrInvalidParams = errors.New("invalid viewshed parameters")

// Default parameterization used by the ViewScout panel.
const (
	DefaultRadiusMeters     = 10000.0
	DefaultNumAzimuths      = 72
	DefaultNumSamplesPerRay = 40
	DefaultObserverHeight   = 1.7
)

// Params describes one viewshed analysis.
type Params struct {
	// Lon/Lat of the observer in decimal degrees
	Lon float64
	Lat float64

	// ObserverHeight is the eye height above ground in meters
	ObserverHeight float64

	// RadiusMeters is the distance of the farthest sample on every ray
	RadiusMeters float64

	// NumAzimuths is the number of equally spaced rays starting at 0° (north)
	NumAzimuths int

	// NumSamplesPerRay is the number of equally spaced samples per ray
	NumSamplesPerRay int
}

// DefaultParams returns the panel's default parameterization for a point.
func DefaultParams(lon, lat float64) Params {
	return Params{
		Lon:              lon,
		Lat:              lat,
		ObserverHeight:   DefaultObserverHeight,
		RadiusMeters:     DefaultRadiusMeters,
		NumAzimuths:      DefaultNumAzimuths,
		NumSamplesPerRay: DefaultNumSamplesPerRay,
	}
}

// Validate checks the parameters and returns an error wrapping
// ErrInvalidParams describing the first problem found.
func (p Params) Validate() error {
	if !(geodesy.Point{Lat: p.Lat, Lon: p.Lon}).Valid() {
		return fmt.Errorf("%w: observer coordinate (%v, %v) out of range", ErrInvalidParams, p.Lat, p.Lon)
	}
	if !isFinite(p.ObserverHeight) || p.ObserverHeight < 0 {
		return fmt.Errorf("%w: observer height must be a finite non-negative number, got %v", ErrInvalidParams, p.ObserverHeight)
	}
	if !isFinite(p.RadiusMeters) || p.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius must be a finite positive number, got %v", ErrInvalidParams, p.RadiusMeters)
	}
	if p.NumAzimuths < 1 {
		return fmt.Errorf("%w: number of azimuths must be at least 1, got %d", ErrInvalidParams, p.NumAzimuths)
	}
	if p.NumSamplesPerRay < 1 {
		return fmt.Errorf("%w: samples per ray must be at least 1, got %d", ErrInvalidParams, p.NumSamplesPerRay)
	}
	return nil
}

// RaySample is one point along a ray.
type RaySample struct {
	// Distance from the observer in meters
	Distance float64 `json:"distance"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Elevation is the sampled terrain height in meters (0 when unavailable)
	Elevation float64 `json:"elevation"`

	Visible bool `json:"visible"`
}

// RayResult holds the samples of one ray, ordered by increasing distance.
type RayResult struct {
	// Azimuth is the compass bearing of the ray in degrees
	Azimuth float64     `json:"azimuth"`
	Samples []RaySample `json:"samples"`
}

// Result is the outcome of one viewshed analysis.
// It is treated as immutable once returned.
type Result struct {
	ObserverLon    float64 `json:"observerLon"`
	ObserverLat    float64 `json:"observerLat"`
	ObserverHeight float64 `json:"observerHeight"`

	// TerrainHeight is the ground elevation under the observer
	TerrainHeight float64 `json:"terrainHeight"`

	// Rays are ordered by increasing azimuth with a uniform step
	Rays []RayResult `json:"rays"`

	VisibleCount    int     `json:"visibleCount"`
	TotalCount      int     `json:"totalCount"`
	VisibleFraction float64 `json:"visibleFraction"`
}

// ObserverElevation is the observer's eye elevation above sea level.
func (r *Result) ObserverElevation() float64 {
	return r.TerrainHeight + r.ObserverHeight
}

// AngularStep is the bearing spacing between consecutive rays.
func (r *Result) AngularStep() float64 {
	if len(r.Rays) == 0 {
		return 0
	}
	return 360.0 / float64(len(r.Rays))
}

// Compute runs a viewshed analysis.
//
// The sampler is called exactly twice: once for the observer point and once
// for every ray sample together. Any sampler error fails the whole analysis.
func Compute(ctx context.Context, sampler terrain.Sampler, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	observer := []geodesy.Point{{Lat: p.Lat, Lon: p.Lon}}
	observerSamples, err := sampler.SampleElevations(ctx, observer)
	if err != nil {
		return nil, fmt.Errorf("failed to sample observer terrain: %w", err)
	}
	if err := terrain.CheckLength(observer, observerSamples); err != nil {
		return nil, err
	}
	terrainHeight := observerSamples[0].HeightOrZero()
	observerElevation := terrainHeight + p.ObserverHeight

	azStep := 360.0 / float64(p.NumAzimuths)
	distStep := p.RadiusMeters / float64(p.NumSamplesPerRay)

	points := make([]geodesy.Point, 0, p.NumAzimuths*p.NumSamplesPerRay)
	for a := 0; a < p.NumAzimuths; a++ {
		azimuth := azStep * float64(a)
		for s := 1; s <= p.NumSamplesPerRay; s++ {
			lat, lon := geodesy.DestinationPoint(p.Lat, p.Lon, azimuth, distStep*float64(s))
			points = append(points, geodesy.Point{Lat: lat, Lon: lon})
		}
	}

	samples, err := sampler.SampleElevations(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("failed to sample ray terrain: %w", err)
	}
	if err := terrain.CheckLength(points, samples); err != nil {
		return nil, err
	}

	result := &Result{
		ObserverLon:    p.Lon,
		ObserverLat:    p.Lat,
		ObserverHeight: p.ObserverHeight,
		TerrainHeight:  terrainHeight,
		Rays:           make([]RayResult, p.NumAzimuths),
	}

	for a := 0; a < p.NumAzimuths; a++ {
		start := a * p.NumSamplesPerRay
		ray := traceRay(
			azStep*float64(a),
			observerElevation,
			distStep,
			points[start:start+p.NumSamplesPerRay],
			samples[start:start+p.NumSamplesPerRay],
		)
		for _, s := range ray.Samples {
			result.TotalCount++
			if s.Visible {
				result.VisibleCount++
			}
		}
		result.Rays[a] = ray
	}

	result.VisibleFraction = float64(result.VisibleCount) / float64(result.TotalCount)
	return result, nil
}

// traceRay applies the running-maximum horizon test to one ray.
// requested and sampled must be ordered near-to-far.
func traceRay(azimuth, observerElevation, distStep float64, requested []geodesy.Point, sampled []terrain.Sample) RayResult {
	ray := RayResult{
		Azimuth: azimuth,
		Samples: make([]RaySample, len(sampled)),
	}

	maxAngle := math.Inf(-1)
	for i, s := range sampled {
		dist := distStep * float64(i+1)
		elev := s.HeightOrZero()

		effective := elev - geodesy.CurvatureDrop(dist)
		angle := math.Atan2(effective-observerElevation, dist)

		visible := clearsHorizon(angle, maxAngle, i == 0)
		if angle > maxAngle {
			maxAngle = angle
		}

		ray.Samples[i] = RaySample{
			Distance:  dist,
			Lat:       requested[i].Lat,
			Lon:       requested[i].Lon,
			Elevation: elev,
			Visible:   visible,
		}
	}

	return ray
}

// clearsHorizon reports whether a sample at angle is visible given the
// running maximum of nearer samples. Ties with the maximum are hidden; the
// nearest sample is always visible.
func clearsHorizon(angle, maxAngle float64, nearest bool) bool {
	return nearest || angle > maxAngle
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
