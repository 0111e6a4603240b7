package geodesy

import (
	"math"
	"testing"
)

// TestDestinationPoint tests the forward geodesic along cardinal bearings.
func TestDestinationPoint(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		bearing   float64
		distance  float64
		wantLat   float64
		wantLon   float64
		tolerance float64
	}{
		{
			name:      "Zero distance returns origin",
			lat:       37.7749,
			lon:       -122.4194,
			bearing:   123.0,
			distance:  0,
			wantLat:   37.7749,
			wantLon:   -122.4194,
			tolerance: 1e-9,
		},
		{
			name:      "One degree of arc due north",
			lat:       0,
			lon:       0,
			bearing:   0,
			distance:  EarthRadiusMeters * DegreesToRadians,
			wantLat:   1.0,
			wantLon:   0,
			tolerance: 1e-9,
		},
		{
			name:      "One degree of arc due east along equator",
			lat:       0,
			lon:       10,
			bearing:   90,
			distance:  EarthRadiusMeters * DegreesToRadians,
			wantLat:   0,
			wantLon:   11,
			tolerance: 1e-9,
		},
		{
			name:      "Due south",
			lat:       45,
			lon:       7,
			bearing:   180,
			distance:  EarthRadiusMeters * DegreesToRadians * 2,
			wantLat:   43,
			wantLon:   7,
			tolerance: 1e-9,
		},
		{
			name:      "East across the antimeridian wraps",
			lat:       0,
			lon:       179.5,
			bearing:   90,
			distance:  EarthRadiusMeters * DegreesToRadians,
			wantLat:   0,
			wantLon:   -179.5,
			tolerance: 1e-9,
		},
		{
			name:      "West across the antimeridian wraps",
			lat:       0,
			lon:       -179.5,
			bearing:   270,
			distance:  EarthRadiusMeters * DegreesToRadians,
			wantLat:   0,
			wantLon:   179.5,
			tolerance: 1e-9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon := DestinationPoint(tt.lat, tt.lon, tt.bearing, tt.distance)
			if math.Abs(lat-tt.wantLat) > tt.tolerance {
				t.Errorf("Expected lat %.9f, got %.9f", tt.wantLat, lat)
			}
			if math.Abs(lon-tt.wantLon) > tt.tolerance {
				t.Errorf("Expected lon %.9f, got %.9f", tt.wantLon, lon)
			}
		})
	}
}

// TestDestinationRoundTrip checks that DistanceBetween recovers the distance
// travelled by DestinationPoint.
func TestDestinationRoundTrip(t *testing.T) {
	origins := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 21.3, Lon: -157.8},
		{Lat: -33.86, Lon: 151.21},
		{Lat: 64.1, Lon: -21.9},
	}
	distances := []float64{1, 250, 1000, 10000, 25000, 50000}

	for _, o := range origins {
		for bearing := 0.0; bearing < 360; bearing += 37.5 {
			for _, d := range distances {
				lat, lon := DestinationPoint(o.Lat, o.Lon, bearing, d)
				got := DistanceBetween(o.Lat, o.Lon, lat, lon)
				if math.Abs(got-d)/d > 0.001 {
					t.Errorf("origin %+v bearing %.1f: expected distance %.3f, got %.3f", o, bearing, d, got)
				}
			}
		}
	}
}

// TestDistanceBetween tests the chord distance against the haversine arc.
func TestDistanceBetween(t *testing.T) {
	t.Run("Identical points", func(t *testing.T) {
		if d := DistanceBetween(10, 20, 10, 20); d != 0 {
			t.Errorf("Expected 0, got %f", d)
		}
	})

	t.Run("Chord is shorter than arc", func(t *testing.T) {
		chord := DistanceBetween(0, 0, 0, 90)
		arc := HaversineMeters(0, 0, 0, 90)
		wantChord := EarthRadiusMeters * math.Sqrt2
		if math.Abs(chord-wantChord) > 1e-6 {
			t.Errorf("Expected chord %.3f, got %.3f", wantChord, chord)
		}
		if chord >= arc {
			t.Errorf("Expected chord %.3f < arc %.3f", chord, arc)
		}
	})

	t.Run("Short range chord matches arc", func(t *testing.T) {
		chord := DistanceBetween(40, -74, 40.05, -74.05)
		arc := HaversineMeters(40, -74, 40.05, -74.05)
		if math.Abs(chord-arc) > 0.01 {
			t.Errorf("Expected chord ~ arc at short range, got chord=%.4f arc=%.4f", chord, arc)
		}
	})
}

// TestBearing tests initial bearing calculation.
func TestBearing(t *testing.T) {
	origin := Point{Lat: 40, Lon: -74}
	for _, want := range []float64{0, 45, 90, 180, 270, 315} {
		lat, lon := DestinationPoint(origin.Lat, origin.Lon, want, 5000)
		got := Bearing(origin, Point{Lat: lat, Lon: lon})
		diff := math.Abs(got - want)
		if diff > 180 {
			diff = 360 - diff
		}
		if diff > 0.01 {
			t.Errorf("Expected bearing %.2f, got %.4f", want, got)
		}
	}
}

// TestNormalizeAzimuth tests azimuth normalization
func TestNormalizeAzimuth(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{0, 0},
		{359, 359},
		{360, 0},
		{365, 5},
		{-5, 355},
		{720, 0},
	}

	for _, tt := range tests {
		got := NormalizeAzimuth(tt.input)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeAzimuth(%.1f) = %.1f, want %.1f", tt.input, got, tt.want)
		}
	}
}

// TestNormalizeLongitude tests longitude wrapping.
func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{0, 0},
		{179, 179},
		{181, -179},
		{-181, 179},
		{540, -180},
	}

	for _, tt := range tests {
		got := NormalizeLongitude(tt.input)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeLongitude(%.1f) = %.1f, want %.1f", tt.input, got, tt.want)
		}
	}

	// in-range values pass through bit for bit
	for _, lon := range []float64{-157.8, -180, 2.35, 179.99} {
		if got := NormalizeLongitude(lon); got != lon {
			t.Errorf("Expected %v unchanged, got %v", lon, got)
		}
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"origin", Point{0, 0}, true},
		{"corners", Point{90, -180}, true},
		{"lat too big", Point{90.1, 0}, false},
		{"lon too small", Point{0, -180.5}, false},
		{"nan", Point{math.NaN(), 0}, false},
		{"inf", Point{0, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Valid(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCurvatureDrop(t *testing.T) {
	// ~7.85 m at 10 km
	got := CurvatureDrop(10000)
	if math.Abs(got-7.848) > 0.001 {
		t.Errorf("Expected ~7.848 m, got %.4f", got)
	}
}
