package server

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/pkg/geodesy"
	"github.com/unklstewy/viewscout/pkg/water"
)

// Overlay styling for sample points.
const (
	visibleColor   = "#00ff88"
	visibleOpacity = 0.25
	hiddenColor    = "#ff3d3d"
	hiddenOpacity  = 0.1
	waterColor     = "#3da5ff"
)

// arcStepDegrees is the bearing spacing of water segment arcs.
const arcStepDegrees = 1.0

// reportGeoJSON builds the map overlay for a report: the observer, one
// point per ray sample and one arc per visible water segment.
func reportGeoJSON(report *analysis.Report) *geojson.FeatureCollection {
	res := report.Result
	fc := geojson.NewFeatureCollection()

	observer := geojson.NewFeature(orb.Point{res.ObserverLon, res.ObserverLat})
	observer.ID = report.ID.String()
	observer.Properties = geojson.Properties{
		"kind":           "observer",
		"terrainHeight":  res.TerrainHeight,
		"observerHeight": res.ObserverHeight,
		"visibleCount":   res.VisibleCount,
		"totalCount":     res.TotalCount,
		"score":          report.Score.Total,
		"rating":         string(report.Rating),
		"water":          string(report.Water.Classification),
	}
	fc.Append(observer)

	radius := 0.0
	for _, ray := range res.Rays {
		for _, s := range ray.Samples {
			f := geojson.NewFeature(orb.Point{s.Lon, s.Lat})
			color, opacity := hiddenColor, hiddenOpacity
			if s.Visible {
				color, opacity = visibleColor, visibleOpacity
			}
			f.Properties = geojson.Properties{
				"kind":      "sample",
				"visible":   s.Visible,
				"elevation": s.Elevation,
				"distance":  s.Distance,
				"azimuth":   ray.Azimuth,
				"color":     color,
				"opacity":   opacity,
			}
			fc.Append(f)
			radius = math.Max(radius, s.Distance)
		}
	}

	for _, seg := range report.Water.Segments {
		f := geojson.NewFeature(segmentArc(res.ObserverLat, res.ObserverLon, radius, seg))
		f.Properties = geojson.Properties{
			"kind":         "water",
			"startBearing": seg.StartBearing,
			"endBearing":   seg.EndBearing,
			"color":        waterColor,
		}
		fc.Append(f)
	}

	return fc
}

// segmentArc traces a water segment clockwise as an arc at distance meters
// from the observer. A segment through north may end past 360 or below its
// start; both wrap.
func segmentArc(lat, lon, distance float64, seg water.Segment) orb.LineString {
	end := seg.EndBearing
	if end <= seg.StartBearing {
		end += 360
	}

	var line orb.LineString
	for b := seg.StartBearing; b < end; b += arcStepDegrees {
		pLat, pLon := geodesy.DestinationPoint(lat, lon, geodesy.NormalizeAzimuth(b), distance)
		line = append(line, orb.Point{pLon, pLat})
	}
	pLat, pLon := geodesy.DestinationPoint(lat, lon, geodesy.NormalizeAzimuth(seg.EndBearing), distance)
	return append(line, orb.Point{pLon, pLat})
}
