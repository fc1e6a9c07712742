// Package gridtiles renders the tile grid as Mapbox Vector Tiles and
// packs ranges of them into PMTiles archives.
//
// Each vector tile z/x/y draws the grid at zoom z: a "tiles" layer with
// the outline of the tile and a "centers" layer with its label point,
// carrying the same properties as the viewport overlay.
package gridtiles

import (
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/tilegrid/internal/cover"
	"github.com/joeblew999/tilegrid/internal/overlay"
	"github.com/joeblew999/tilegrid/internal/pmtiles"
)

// Layer names inside every grid tile.
const (
	TilesLayer   = "tiles"
	CentersLayer = "centers"
)

// MaxZoom is the deepest grid tile served or exported.
const MaxZoom = 22

// Render returns the gzipped MVT for t.
func Render(t maptile.Tile) ([]byte, error) {
	if t.Z > MaxZoom {
		return nil, fmt.Errorf("zoom %d above %d", t.Z, MaxZoom)
	}
	if n := uint32(1) << t.Z; t.X >= n || t.Y >= n {
		return nil, fmt.Errorf("tile %d/%d/%d out of range", t.Z, t.X, t.Y)
	}

	// features are built fresh: ProjectToTile rewrites geometry in place
	layers := mvt.Layers{
		mvt.NewLayer(TilesLayer, geojson.NewFeatureCollection().Append(overlay.TileFeature(t))),
		mvt.NewLayer(CentersLayer, geojson.NewFeatureCollection().Append(overlay.CenterFeature(t))),
	}
	layers.ProjectToTile(t)
	layers.Clip(mvt.MapboxGLDefaultExtentBound)

	data, err := mvt.MarshalGzipped(layers)
	if err != nil {
		return nil, fmt.Errorf("encoding tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	return data, nil
}

// ExportOptions selects what goes into an archive.
type ExportOptions struct {
	Bound   orb.Bound
	MinZoom int
	MaxZoom int
	Name    string
}

// ProgressFunc is called after each rendered tile.
type ProgressFunc func(done, total int)

// Stats summarizes an export.
type Stats struct {
	Tiles int
	Bytes int64
}

// Count returns how many tiles an export of opts renders.
func Count(opts ExportOptions) int {
	n := 0
	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		n += len(cover.Bound(opts.Bound, maptile.Zoom(z)))
	}
	return n
}

// Export renders every grid tile in opts and writes a PMTiles archive
// to w.
func Export(w io.Writer, opts ExportOptions, onProgress ProgressFunc) (Stats, error) {
	if opts.MinZoom < 0 {
		opts.MinZoom = 0
	}
	if opts.MaxZoom > MaxZoom {
		opts.MaxZoom = MaxZoom
	}
	if opts.MinZoom > opts.MaxZoom {
		return Stats{}, fmt.Errorf("min zoom %d above max zoom %d", opts.MinZoom, opts.MaxZoom)
	}
	if opts.Name == "" {
		opts.Name = "tilegrid"
	}

	total := Count(opts)
	var tiles []pmtiles.Tile
	var stats Stats
	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		for _, t := range cover.Bound(opts.Bound, maptile.Zoom(z)) {
			data, err := Render(t)
			if err != nil {
				return Stats{}, err
			}
			tiles = append(tiles, pmtiles.Tile{Z: uint8(t.Z), X: t.X, Y: t.Y, Data: data})
			stats.Tiles++
			stats.Bytes += int64(len(data))
			if onProgress != nil {
				onProgress(stats.Tiles, total)
			}
		}
	}

	center := opts.Bound.Center()
	archive := pmtiles.Archive{
		Header: pmtiles.Header{
			InternalCompression: pmtiles.Gzip,
			TileCompression:     pmtiles.Gzip,
			TileType:            pmtiles.Mvt,
			MinZoom:             uint8(opts.MinZoom),
			MaxZoom:             uint8(opts.MaxZoom),
			MinLonE7:            e7(opts.Bound.Min[0]),
			MinLatE7:            e7(opts.Bound.Min[1]),
			MaxLonE7:            e7(opts.Bound.Max[0]),
			MaxLatE7:            e7(opts.Bound.Max[1]),
			CenterZoom:          uint8(opts.MinZoom),
			CenterLonE7:         e7(center[0]),
			CenterLatE7:         e7(center[1]),
		},
		Metadata: map[string]any{
			"name":        opts.Name,
			"format":      "pbf",
			"compression": "gzip",
			"minzoom":     opts.MinZoom,
			"maxzoom":     opts.MaxZoom,
			"vector_layers": []map[string]any{
				{"id": TilesLayer, "fields": map[string]string{"even": "Boolean", "quadkey": "String"}},
				{"id": CentersLayer, "fields": map[string]string{"text": "String", "quadkey": "String"}},
			},
		},
	}
	if err := pmtiles.Write(w, archive, tiles); err != nil {
		return Stats{}, fmt.Errorf("writing pmtiles: %w", err)
	}
	return stats, nil
}

func e7(deg float64) int32 {
	return int32(math.Round(deg * 1e7))
}
