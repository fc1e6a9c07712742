package quadkey

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Bound returns the lon/lat box of t.
func Bound(t maptile.Tile) orb.Bound {
	return t.Bound()
}

// Polygon returns the closed outline of t.
func Polygon(t maptile.Tile) orb.Polygon {
	return t.Bound().ToPolygon()
}

// Center is the midpoint of the lon/lat box, not the mercator center.
func Center(t maptile.Tile) orb.Point {
	return t.Bound().Center()
}

// Even reports whether x+y is even. Used to shade alternate tiles.
func Even(t maptile.Tile) bool {
	return (t.X+t.Y)%2 == 0
}

// Label is the text drawn at the tile center.
func Label(t maptile.Tile) string {
	return fmt.Sprintf("Tile: [%d,%d,%d]\nQuadkey: %s\nZoom: %d", t.X, t.Y, t.Z, FromTile(t), t.Z)
}
