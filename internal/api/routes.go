// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"math"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/tilegrid/internal/cover"
	"github.com/joeblew999/tilegrid/internal/navigate"
	"github.com/joeblew999/tilegrid/internal/overlay"
	"github.com/joeblew999/tilegrid/internal/quadkey"
)

// MaxTiles bounds how many tiles one overlay request may draw.
const MaxTiles = 4096

// Types

type TileBody struct {
	Z       uint32    `json:"z" doc:"Zoom" example:"2"`
	X       uint32    `json:"x" doc:"Column" example:"1"`
	Y       uint32    `json:"y" doc:"Row" example:"2"`
	Quadkey string    `json:"quadkey" doc:"Quadkey" example:"21"`
	BBox    []float64 `json:"bbox" doc:"west, south, east, north"`
	Center  []float64 `json:"center" doc:"lon, lat of the box midpoint"`
}

type GridInput struct {
	West  float64 `query:"west" required:"true" doc:"West longitude of the viewport" example:"-180"`
	South float64 `query:"south" required:"true" minimum:"-90" maximum:"90" doc:"South latitude" example:"-80"`
	East  float64 `query:"east" required:"true" doc:"East longitude of the viewport" example:"180"`
	North float64 `query:"north" required:"true" minimum:"-90" maximum:"90" doc:"North latitude" example:"80"`
	Zoom  float64 `query:"zoom" required:"true" minimum:"0" maximum:"24" doc:"Map zoom, fractional" example:"1.3"`
}

type GridBody struct {
	Zoom    uint32                     `json:"zoom" doc:"Integer zoom the grid is drawn at"`
	Tiles   *geojson.FeatureCollection `json:"tiles" doc:"Tile outlines with even and quadkey properties"`
	Centers *geojson.FeatureCollection `json:"centers" doc:"Tile label points with text and quadkey properties"`
}

type QuadkeyInput struct {
	Quadkey string `path:"quadkey" maxLength:"32" doc:"Quadkey to look up" example:"12"`
}

type QuadkeyBody struct {
	Tile    TileBody         `json:"tile"`
	Padding navigate.Padding `json:"padding" doc:"Padding a map should keep when fitting the tile"`
}

type TileAtInput struct {
	Lon  float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude"`
	Lat  float64 `query:"lat" required:"true" minimum:"-85.0511" maximum:"85.0511" doc:"Latitude"`
	Zoom float64 `query:"zoom" required:"true" minimum:"0" maximum:"24" doc:"Map zoom, rounded up like the overlay"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds the stateless REST handlers.
type APIHandler struct {
	coverer cover.Coverer
}

func NewAPIHandler(c cover.Coverer) *APIHandler {
	return &APIHandler{coverer: c}
}

// RegisterRoutes registers health, grid and quadkey routes.
func (h *APIHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/grid", h.GetGrid, huma.OperationTags("grid"))
	huma.Get(api, "/api/v1/quadkeys/{quadkey}", h.GetQuadkey, huma.OperationTags("quadkeys"))
	huma.Get(api, "/api/v1/tiles/at", h.GetTileAt, huma.OperationTags("quadkeys"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetGrid(ctx context.Context, input *GridInput) (*struct{ Body GridBody }, error) {
	if input.West > input.East || input.South > input.North {
		return nil, huma.Error422UnprocessableEntity("bounds min above max")
	}
	v := overlay.ViewportFromBound(orb.Bound{
		Min: orb.Point{input.West, input.South},
		Max: orb.Point{input.East, input.North},
	}, input.Zoom)
	if err := CheckSize(v); err != nil {
		return nil, err
	}

	cols, err := overlay.Build(v, h.coverer)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to build grid", err)
	}
	return &struct{ Body GridBody }{Body: GridBody{
		Zoom:    uint32(cols.Zoom),
		Tiles:   cols.Tiles,
		Centers: cols.Centers,
	}}, nil
}

func (h *APIHandler) GetQuadkey(ctx context.Context, input *QuadkeyInput) (*struct{ Body QuadkeyBody }, error) {
	target, err := navigate.Resolve(input.Quadkey)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	return &struct{ Body QuadkeyBody }{Body: QuadkeyBody{
		Tile:    NewTileBody(target.Tile),
		Padding: target.Padding,
	}}, nil
}

func (h *APIHandler) GetTileAt(ctx context.Context, input *TileAtInput) (*struct{ Body TileBody }, error) {
	z := overlay.Viewport{Zoom: input.Zoom}.TilingZoom()
	t := cover.At(orb.Point{input.Lon, input.Lat}, z)
	return &struct{ Body TileBody }{Body: NewTileBody(t)}, nil
}

// NewTileBody describes t for API responses.
func NewTileBody(t maptile.Tile) TileBody {
	b := quadkey.Bound(t)
	c := quadkey.Center(t)
	return TileBody{
		Z:       uint32(t.Z),
		X:       t.X,
		Y:       t.Y,
		Quadkey: quadkey.FromTile(t),
		BBox:    []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
		Center:  []float64{c[0], c[1]},
	}
}

// CheckSize rejects viewports whose grid would exceed MaxTiles.
func CheckSize(v overlay.Viewport) error {
	b := v.Polygon().Bound()
	n := cover.Count(b, v.TilingZoom())
	if n > MaxTiles || math.IsNaN(v.Zoom) {
		return huma.Error422UnprocessableEntity("viewport too large for grid at this zoom")
	}
	return nil
}
