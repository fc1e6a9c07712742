package overlay

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// ClampLongitude replaces out of range corner longitudes before the
// polygon reaches the cover function.
const ClampLongitude = 179.99999

// MaxZoom is the deepest grid the overlay draws.
const MaxZoom maptile.Zoom = 22

// Viewport is what the map reports on every move: its four corners and
// a continuous zoom.
type Viewport struct {
	SouthWest orb.Point `json:"sw"`
	NorthWest orb.Point `json:"nw"`
	NorthEast orb.Point `json:"ne"`
	SouthEast orb.Point `json:"se"`
	Zoom      float64   `json:"zoom"`
}

// ViewportFromBound builds the viewport of an axis aligned box.
func ViewportFromBound(b orb.Bound, zoom float64) Viewport {
	return Viewport{
		SouthWest: b.Min,
		NorthWest: orb.Point{b.Min[0], b.Max[1]},
		NorthEast: b.Max,
		SouthEast: orb.Point{b.Max[0], b.Min[1]},
		Zoom:      zoom,
	}
}

// Polygon returns the closed ring SW, NW, NE, SE, SW with longitudes
// clamped to ±ClampLongitude.
func (v Viewport) Polygon() orb.Polygon {
	ring := orb.Ring{v.SouthWest, v.NorthWest, v.NorthEast, v.SouthEast, v.SouthWest}
	for i, p := range ring {
		ring[i] = clamp(p)
	}
	return orb.Polygon{ring}
}

func clamp(p orb.Point) orb.Point {
	switch {
	case p[0] < -180:
		return orb.Point{-ClampLongitude, p[1]}
	case p[0] > 180:
		return orb.Point{ClampLongitude, p[1]}
	}
	return p
}

// TilingZoom is the integer zoom the grid is drawn at: the ceiling of
// the map zoom, kept within [0, MaxZoom].
func (v Viewport) TilingZoom() maptile.Zoom {
	z := math.Ceil(v.Zoom)
	if z < 0 || math.IsNaN(z) {
		return 0
	}
	if z > float64(MaxZoom) {
		return MaxZoom
	}
	return maptile.Zoom(z)
}

// Center is the midpoint of the unclamped corners.
func (v Viewport) Center() orb.Point {
	b := orb.MultiPoint{v.SouthWest, v.NorthWest, v.NorthEast, v.SouthEast}.Bound()
	return b.Center()
}
