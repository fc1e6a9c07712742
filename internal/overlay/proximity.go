package overlay

import (
	"math"

	"github.com/paulmach/orb"
)

// ProximityMinZoom is the zoom above which the geocoder is biased to
// the map center. Below it the view is too wide for the center to mean
// anything.
const ProximityMinZoom = 9

// Proximity returns the geocoder bias point for v, if any. The
// longitude is wrapped into [-180, 180) since geocoding APIs reject
// values outside it.
func Proximity(v Viewport) (orb.Point, bool) {
	if v.Zoom <= ProximityMinZoom {
		return orb.Point{}, false
	}
	c := v.Center()
	return orb.Point{WrapLongitude(c[0]), c[1]}, true
}

// WrapLongitude maps any longitude onto [-180, 180).
func WrapLongitude(lng float64) float64 {
	if lng >= -180 && lng < 180 {
		return lng
	}
	return math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
}
