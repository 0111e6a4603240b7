// Package score rates a viewpoint from its viewshed and water visibility.
package score

import (
	"math"

	"github.com/unklstewy/viewscout/pkg/viewshed"
	"github.com/unklstewy/viewscout/pkg/water"
)

// Caps of the four score terms. They sum to 100.
const (
	MaxTerrainVisibility  = 30
	MaxWaterBonus         = 30
	MaxElevationAdvantage = 20
	MaxViewDistance       = 20

	// Water arc and height advantage at which their terms saturate
	waterArcSaturation   = 120.0
	heightAdvSaturation  = 100.0
	fallbackRadiusMeters = 10000.0
)

// Breakdown holds the individual score terms.
type Breakdown struct {
	TerrainVisibility  int `json:"terrainVisibility"`
	WaterBonus         int `json:"waterBonus"`
	ElevationAdvantage int `json:"elevationAdvantage"`
	ViewDistance       int `json:"viewDistance"`
}

// Sum adds the four terms.
func (b Breakdown) Sum() int {
	return b.TerrainVisibility + b.WaterBonus + b.ElevationAdvantage + b.ViewDistance
}

// Score is a 0-100 composite view rating.
type Score struct {
	Total     int       `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
}

// Compute scores a viewpoint.
//
//	terrainVisibility  = visibleFraction × 30
//	waterBonus         = min(arc/120, 1) × 30
//	elevationAdvantage = min(max(relativeHeight, 0)/100, 1) × 20
//	viewDistance       = min(maxVisibleDistance/radius, 1) × 20
//
// relativeHeight is the observer elevation above the mean of every sample.
// radius is the distance of the first ray's last sample.
func Compute(result *viewshed.Result, w water.Visibility) Score {
	return Combine(Terrain(result), w)
}

// Terrain computes the three terms that depend only on the viewshed.
// WaterBonus is left at zero.
func Terrain(result *viewshed.Result) Breakdown {
	var sum float64
	var n int
	maxVisible := 0.0
	for _, ray := range result.Rays {
		for _, s := range ray.Samples {
			sum += s.Elevation
			n++
			if s.Visible && s.Distance > maxVisible {
				maxVisible = s.Distance
			}
		}
	}

	mean := 0.0
	if n > 0 {
		mean = sum / float64(n)
	}
	relative := result.ObserverElevation() - mean

	return Breakdown{
		TerrainVisibility:  term(result.VisibleFraction, MaxTerrainVisibility),
		ElevationAdvantage: term(math.Max(relative, 0)/heightAdvSaturation, MaxElevationAdvantage),
		ViewDistance:       term(maxVisible/sampledRadius(result), MaxViewDistance),
	}
}

// Combine adds the water term to a terrain breakdown and totals it.
func Combine(b Breakdown, w water.Visibility) Score {
	b.WaterBonus = term(w.ArcDegrees/waterArcSaturation, MaxWaterBonus)
	return Score{
		Total:     min(100, b.Sum()),
		Breakdown: b,
	}
}

// sampledRadius is the farthest distance actually sampled on the first ray.
func sampledRadius(result *viewshed.Result) float64 {
	if len(result.Rays) == 0 || len(result.Rays[0].Samples) == 0 {
		return fallbackRadiusMeters
	}
	r := result.Rays[0].Samples[len(result.Rays[0].Samples)-1].Distance
	if r <= 0 {
		return fallbackRadiusMeters
	}
	return r
}

// term scales a ratio saturating at 1 to an integer in [0, limit].
func term(ratio float64, limit int) int {
	if math.IsNaN(ratio) {
		return 0
	}
	v := int(math.Round(math.Min(ratio, 1) * float64(limit)))
	if v < 0 {
		return 0
	}
	return v
}
