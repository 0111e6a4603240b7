// Package terrain provides elevation sampling for the viewshed engine.
//
// A Sampler resolves a batch of geodetic points to terrain heights in one
// call. Heights are optional: points outside the provider's coverage come
// back with a nil Height and callers treat them as sea level.
package terrain

import (
	"context"
	"errors"
	"fmt"

	"github.com/unklstewy/viewscout/pkg/geodesy"
)

var (
	// ErrUnavailable is returned when the terrain service is known to be down
	// (circuit breaker open) and the request was not attempted.
	ErrUnavailable = errors.New("terrain service unavailable")
)

// Sample is one resolved elevation point.
type Sample struct {
	// Lat/Lon in decimal degrees, as reported by the provider
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Height in meters above mean sea level; nil when the provider has no data
	Height *float64 `json:"height"`
}

// HeightOrZero returns the sample height, or 0 when it is missing.
func (s Sample) HeightOrZero() float64 {
	if s.Height == nil {
		return 0
	}
	return *s.Height
}

// Sampler is the interface every elevation provider must implement.
//
// SampleElevations returns exactly one Sample per input point, in input
// order. Implementations must be safe for concurrent use: separate analyses
// may sample at the same time and each call owns its point list.
type Sampler interface {
	SampleElevations(ctx context.Context, points []geodesy.Point) ([]Sample, error)
}

// HeightFunc adapts a plain function to the Sampler interface.
// The boolean reports whether the point has coverage.
type HeightFunc func(lat, lon float64) (float64, bool)

// SampleElevations implements Sampler.
func (f HeightFunc) SampleElevations(ctx context.Context, points []geodesy.Point) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Sample, len(points))
	for i, p := range points {
		out[i] = Sample{Lat: p.Lat, Lon: p.Lon}
		if h, ok := f(p.Lat, p.Lon); ok {
			out[i].Height = &h
		}
	}
	return out, nil
}

// Flat returns a sampler reporting the same height everywhere.
func Flat(height float64) HeightFunc {
	return func(lat, lon float64) (float64, bool) {
		return height, true
	}
}

// CheckLength verifies a provider honoured the one-sample-per-point contract.
func CheckLength(points []geodesy.Point, samples []Sample) error {
	if len(samples) != len(points) {
		return fmt.Errorf("terrain sampler returned %d samples for %d points", len(samples), len(points))
	}
	return nil
}
