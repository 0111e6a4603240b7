// Package geodesy provides spherical-earth geometry used by the viewshed engine.
//
// All calculations use a sphere of mean radius EarthRadiusMeters. This is an
// intentional approximation: the engine works at ranges of tens of kilometers
// where the ellipsoidal correction is far below terrain data resolution.
package geodesy

import "math"

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusMeters is the Earth's mean radius in meters
	EarthRadiusMeters = 6371000.0
)

// Point is a geodetic position on the sphere.
type Point struct {
	// Lat in decimal degrees (-90 to +90)
	Lat float64 `json:"lat"`

	// Lon in decimal degrees (-180 to +180)
	Lon float64 `json:"lon"`
}

// Valid reports whether the point has finite coordinates inside the
// latitude/longitude domain.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DestinationPoint returns the point reached by travelling distanceMeters from
// (lat, lon) along the initial great-circle bearing bearingDeg.
// Returns (lat, lon) in degrees, with lon wrapped into [-180, 180).
func DestinationPoint(lat, lon, bearingDeg, distanceMeters float64) (float64, float64) {
	lat1 := lat * DegreesToRadians
	lon1 := lon * DegreesToRadians
	theta := bearingDeg * DegreesToRadians
	delta := distanceMeters / EarthRadiusMeters

	sinLat1, cosLat1 := math.Sin(lat1), math.Cos(lat1)
	sinDelta, cosDelta := math.Sin(delta), math.Cos(delta)

	lat2 := math.Asin(sinLat1*cosDelta + cosLat1*sinDelta*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*sinDelta*cosLat1,
		cosDelta-sinLat1*math.Sin(lat2),
	)

	return lat2 * RadiansToDegrees, NormalizeLongitude(lon2 * RadiansToDegrees)
}

// DistanceBetween returns the straight-line (chord) distance in meters between
// two surface points on the sphere.
func DistanceBetween(latA, lonA, latB, lonB float64) float64 {
	ax, ay, az := toCartesian(latA, lonA)
	bx, by, bz := toCartesian(latB, lonB)

	dx := bx - ax
	dy := by - ay
	dz := bz - az
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HaversineMeters calculates the great-circle (arc) distance between two points.
func HaversineMeters(latA, lonA, latB, lonB float64) float64 {
	lat1Rad := latA * DegreesToRadians
	lat2Rad := latB * DegreesToRadians
	dLat := (latB - latA) * DegreesToRadians
	dLon := (lonB - lonA) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Point) float64 {
	lat1 := from.Lat * DegreesToRadians
	lat2 := to.Lat * DegreesToRadians
	dLon := (to.Lon - from.Lon) * DegreesToRadians

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// NormalizeLongitude wraps a longitude into [-180, 180). Values already in
// range are returned unchanged.
func NormalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	l := math.Mod(lon+180.0, 360.0)
	if l < 0 {
		l += 360.0
	}
	return l - 180.0
}

// CurvatureDrop is the first-order apparent drop of a surface point at
// distanceMeters caused by the earth's convexity.
func CurvatureDrop(distanceMeters float64) float64 {
	return distanceMeters * distanceMeters / (2 * EarthRadiusMeters)
}

func toCartesian(lat, lon float64) (x, y, z float64) {
	latRad := lat * DegreesToRadians
	lonRad := lon * DegreesToRadians
	cosLat := math.Cos(latRad)
	return EarthRadiusMeters * cosLat * math.Cos(lonRad),
		EarthRadiusMeters * cosLat * math.Sin(lonRad),
		EarthRadiusMeters * math.Sin(latRad)
}
