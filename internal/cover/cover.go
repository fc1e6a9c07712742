// Package cover computes the set of tiles that intersect a geometry.
//
// The covering algorithm itself is orb's tilecover; this package only
// adapts it to a zoom range and a stable output order.
package cover

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"

	"github.com/joeblew999/tilegrid/internal/quadkey"
)

// Coverer returns the tiles intersecting a polygon for every zoom in
// [minZoom, maxZoom].
type Coverer interface {
	Cover(p orb.Polygon, minZoom, maxZoom maptile.Zoom) ([]maptile.Tile, error)
}

// TileCover implements Coverer with orb's tilecover.
type TileCover struct{}

// Cover returns the cover sorted by quadkey.
func (TileCover) Cover(p orb.Polygon, minZoom, maxZoom maptile.Zoom) ([]maptile.Tile, error) {
	if minZoom > maxZoom {
		return nil, fmt.Errorf("min zoom %d above max zoom %d", minZoom, maxZoom)
	}

	var tiles []maptile.Tile
	for z := minZoom; z <= maxZoom; z++ {
		set, err := tilecover.Polygon(p, z)
		if err != nil {
			return nil, fmt.Errorf("tile cover at zoom %d: %w", z, err)
		}
		for t := range set {
			tiles = append(tiles, t)
		}
	}

	Sort(tiles)
	return tiles, nil
}

// Sort orders tiles by zoom, then quadkey.
func Sort(tiles []maptile.Tile) {
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Z != tiles[j].Z {
			return tiles[i].Z < tiles[j].Z
		}
		return quadkey.FromTile(tiles[i]) < quadkey.FromTile(tiles[j])
	})
}

// Bound returns all tiles at a zoom level whose range spans a bounding
// box. Cheaper than Cover when the area is axis aligned.
func Bound(b orb.Bound, zoom maptile.Zoom) []maptile.Tile {
	minX, minY, maxX, maxY := span(b, zoom)
	tiles := make([]maptile.Tile, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, zoom))
		}
	}
	return tiles
}

// Count returns len(Bound(b, zoom)) without building the slice.
func Count(b orb.Bound, zoom maptile.Zoom) uint64 {
	minX, minY, maxX, maxY := span(b, zoom)
	return uint64(maxX-minX+1) * uint64(maxY-minY+1)
}

// At returns the tile containing p. Unlike maptile.At it never returns
// a column or row past the edge of the world: longitude 180 lands in the
// last column.
func At(p orb.Point, zoom maptile.Zoom) maptile.Tile {
	t := maptile.At(p, zoom)
	last := uint32(1)<<zoom - 1
	return maptile.New(min(t.X, last), min(t.Y, last), zoom)
}

// span returns the tile range of b.
func span(b orb.Bound, zoom maptile.Zoom) (minX, minY, maxX, maxY uint32) {
	minTile := At(b.Min, zoom)
	maxTile := At(b.Max, zoom)

	// y grows southward so the corners come back swapped
	minX, maxX = minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY = minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return minX, minY, maxX, maxY
}
