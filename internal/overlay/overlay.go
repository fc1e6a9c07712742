// Package overlay turns a map viewport into the two feature collections
// the tile grid is drawn from: tile outlines and tile-center labels.
//
// Every update rebuilds both collections from scratch. Nothing is cached
// or diffed between viewports.
package overlay

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/tilegrid/internal/cover"
	"github.com/joeblew999/tilegrid/internal/quadkey"
)

// Collections is one published state of the grid.
type Collections struct {
	Zoom    maptile.Zoom
	Tiles   *geojson.FeatureCollection
	Centers *geojson.FeatureCollection
}

// Empty returns collections with no features, as published before the
// first viewport arrives.
func Empty() Collections {
	return Collections{
		Tiles:   geojson.NewFeatureCollection(),
		Centers: geojson.NewFeatureCollection(),
	}
}

// Build covers the clamped viewport polygon at its tiling zoom and
// derives both collections. Cover errors are returned as is, wrapped.
func Build(v Viewport, c cover.Coverer) (Collections, error) {
	z := v.TilingZoom()
	tiles, err := c.Cover(v.Polygon(), z, z)
	if err != nil {
		return Collections{}, fmt.Errorf("covering viewport at zoom %d: %w", z, err)
	}

	out := Collections{
		Zoom:    z,
		Tiles:   geojson.NewFeatureCollection(),
		Centers: geojson.NewFeatureCollection(),
	}
	for _, t := range tiles {
		out.Tiles.Append(TileFeature(t))
		out.Centers.Append(CenterFeature(t))
	}
	return out, nil
}

// TileFeature is the outline of t with its parity and quadkey.
func TileFeature(t maptile.Tile) *geojson.Feature {
	f := geojson.NewFeature(quadkey.Polygon(t))
	f.Properties["even"] = quadkey.Even(t)
	f.Properties["quadkey"] = quadkey.FromTile(t)
	return f
}

// CenterFeature is the label point of t.
func CenterFeature(t maptile.Tile) *geojson.Feature {
	f := geojson.NewFeature(quadkey.Center(t))
	f.Properties["text"] = quadkey.Label(t)
	f.Properties["quadkey"] = quadkey.FromTile(t)
	return f
}

// Overlay holds the collections last published for one map and
// replaces them on every update.
type Overlay struct {
	coverer cover.Coverer
	publish func(Collections)

	mu      sync.RWMutex
	current Collections
}

// New creates an overlay. publish, if set, is called after every
// successful update with the new collections.
func New(c cover.Coverer, publish func(Collections)) *Overlay {
	return &Overlay{coverer: c, publish: publish, current: Empty()}
}

// Update rebuilds for v and swaps the result in. On error the previous
// collections stay published.
func (o *Overlay) Update(v Viewport) (Collections, error) {
	next, err := Build(v, o.coverer)
	if err != nil {
		return Collections{}, err
	}

	o.mu.Lock()
	o.current = next
	o.mu.Unlock()

	if o.publish != nil {
		o.publish(next)
	}
	return next, nil
}

// Current returns the last published collections.
func (o *Overlay) Current() Collections {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}
