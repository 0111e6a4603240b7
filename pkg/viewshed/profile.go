package viewshed

import (
	"context"
	"fmt"
	"math"

	"github.com/unklstewy/viewscout/pkg/geodesy"
	"github.com/unklstewy/viewscout/pkg/terrain"
)

// DefaultProfileSamples is the number of profile segments used by the panel.
const DefaultProfileSamples = 50

// ProfilePoint is one point of an elevation profile.
type ProfilePoint struct {
	// Distance from the start point in meters
	Distance  float64 `json:"distance"`
	Elevation float64 `json:"elevation"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Profile samples the terrain between two points for charting.
//
// numSamples+1 points (both endpoints included) are interpolated linearly in
// latitude/longitude, which is adequate at the short ranges the panel uses.
// Distances are the fraction along the line times the chord distance
// between the endpoints. The sampler is called once.
func Profile(ctx context.Context, sampler terrain.Sampler, fromLon, fromLat, toLon, toLat float64, numSamples int) ([]ProfilePoint, error) {
	if numSamples < 1 {
		return nil, fmt.Errorf("%w: profile samples must be at least 1, got %d", ErrInvalidParams, numSamples)
	}
	from := geodesy.Point{Lat: fromLat, Lon: fromLon}
	to := geodesy.Point{Lat: toLat, Lon: toLon}
	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("%w: profile endpoints out of range", ErrInvalidParams)
	}

	// take the short way across the antimeridian
	dLon := toLon - fromLon
	if math.Abs(dLon) > 180 {
		dLon = geodesy.NormalizeLongitude(dLon)
	}

	points := make([]geodesy.Point, numSamples+1)
	for i := range points {
		t := float64(i) / float64(numSamples)
		points[i] = geodesy.Point{
			Lat: fromLat + (toLat-fromLat)*t,
			Lon: geodesy.NormalizeLongitude(fromLon + dLon*t),
		}
	}

	samples, err := sampler.SampleElevations(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("failed to sample profile terrain: %w", err)
	}
	if err := terrain.CheckLength(points, samples); err != nil {
		return nil, err
	}

	total := geodesy.DistanceBetween(fromLat, fromLon, toLat, toLon)

	profile := make([]ProfilePoint, len(samples))
	for i, s := range samples {
		profile[i] = ProfilePoint{
			Distance:  float64(i) / float64(numSamples) * total,
			Elevation: s.HeightOrZero(),
			Lat:       points[i].Lat,
			Lon:       points[i].Lon,
		}
	}
	return profile, nil
}
