// Package water infers visible open water from a viewshed result.
//
// Detection is a heuristic: a visible sample at or near sea level that is
// far enough from the observer is taken to be water. There is no land/water
// mask involved.
package water

import (
	"sort"

	"github.com/unklstewy/viewscout/pkg/viewshed"
)

// Detection thresholds.
const (
	// MaxWaterElevation is the highest terrain elevation treated as water
	MaxWaterElevation = 2.0

	// MinWaterDistance keeps flat low ground next to the observer from
	// being reported as water
	MinWaterDistance = 200.0

	// fallbackStep is the angular step used when a result has no rays
	fallbackStep = 5.0
)

// Classification describes how much water is visible.
type Classification string

const (
	Panoramic Classification = "Panoramic"
	Wide      Classification = "Wide"
	Partial   Classification = "Partial"
	PeekABoo  Classification = "Peek-a-boo"
	None      Classification = "None"
)

// Classify maps a water arc in degrees to its classification.
func Classify(arcDegrees float64) Classification {
	switch {
	case arcDegrees > 90:
		return Panoramic
	case arcDegrees > 45:
		return Wide
	case arcDegrees > 15:
		return Partial
	case arcDegrees > 0:
		return PeekABoo
	default:
		return None
	}
}

// Segment is a contiguous arc of visible water, running clockwise from
// StartBearing to EndBearing. A segment touching north has one of two
// shapes: EndBearing of 360 when its rays run up to north ({355, 360}), or
// EndBearing below StartBearing when arcs on both sides of north were merged
// ({355, 10}).
type Segment struct {
	StartBearing float64 `json:"startBearing"`
	EndBearing   float64 `json:"endBearing"`
}

// Visibility summarizes the water visible from an observer.
type Visibility struct {
	OceanVisible   bool           `json:"oceanVisible"`
	ArcDegrees     float64        `json:"arcDegrees"`
	Segments       []Segment      `json:"segments"`
	Classification Classification `json:"classification"`

	// Nearest water hit; nil when no water was detected
	NearestWaterDistance *float64 `json:"nearestWaterDistance"`
	NearestWaterBearing  *float64 `json:"nearestWaterBearing"`
}

// IsWater reports whether a sample qualifies as a water hit.
func IsWater(s viewshed.RaySample) bool {
	return s.Visible && s.Elevation <= MaxWaterElevation && s.Distance >= MinWaterDistance
}

// Detect scans every ray for its first water hit and aggregates the hits
// into an arc, contiguous segments and a classification.
func Detect(result *viewshed.Result) Visibility {
	var (
		azimuths    []float64
		nearestDist *float64
		nearestBear *float64
	)

	for _, ray := range result.Rays {
		for _, s := range ray.Samples {
			if !IsWater(s) {
				continue
			}
			azimuths = append(azimuths, ray.Azimuth)
			if nearestDist == nil || s.Distance < *nearestDist {
				d, b := s.Distance, ray.Azimuth
				nearestDist, nearestBear = &d, &b
			}
			// Only the nearest hit along a bearing counts.
			break
		}
	}

	step := fallbackStep
	if len(result.Rays) > 0 {
		step = result.AngularStep()
	}

	arc := float64(len(azimuths)) * step
	return Visibility{
		OceanVisible:         len(azimuths) > 0,
		ArcDegrees:           arc,
		Segments:             segments(azimuths, step),
		Classification:       Classify(arc),
		NearestWaterDistance: nearestDist,
		NearestWaterBearing:  nearestBear,
	}
}

// segments groups flagged azimuths into contiguous arcs. A gap larger than
// one and a half steps starts a new arc. Arcs touching both sides of north
// are merged into one.
func segments(azimuths []float64, step float64) []Segment {
	out := make([]Segment, 0)
	if len(azimuths) == 0 {
		return out
	}

	sorted := append([]float64(nil), azimuths...)
	sort.Float64s(sorted)

	start, prev := sorted[0], sorted[0]
	for _, az := range sorted[1:] {
		if az-prev > step*1.5 {
			out = append(out, Segment{StartBearing: start, EndBearing: prev + step})
			start = az
		}
		prev = az
	}
	out = append(out, Segment{StartBearing: start, EndBearing: prev + step})

	if len(out) > 1 {
		first, last := out[0], &out[len(out)-1]
		if last.EndBearing >= 360 && first.StartBearing <= step {
			last.EndBearing = first.EndBearing
			out = out[1:]
		}
	}

	return out
}
