package analysis

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/unklstewy/viewscout/pkg/geodesy"
)

var coordPattern = regexp.MustCompile(`^\s*(-?\d+\.?\d*)\s*,\s*(-?\d+\.?\d*)\s*$`)

// ParseCoordinates parses "lat, lon" in decimal degrees, e.g. "21.2620, -157.8060".
func ParseCoordinates(s string) (lat, lon float64, err error) {
	m := coordPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("expected \"lat, lon\" in decimal degrees, got %q", s)
	}

	lat, _ = strconv.ParseFloat(m[1], 64)
	lon, _ = strconv.ParseFloat(m[2], 64)

	if !(geodesy.Point{Lat: lat, Lon: lon}).Valid() {
		return 0, 0, fmt.Errorf("coordinate %s, %s out of range", m[1], m[2])
	}
	return lat, lon, nil
}
