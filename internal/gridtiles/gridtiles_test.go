package gridtiles

import (
	"bytes"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/tilegrid/internal/pmtiles"
)

func TestRender(t *testing.T) {
	data, err := Render(maptile.New(1, 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	layers, err := mvt.UnmarshalGzipped(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 2 {
		t.Fatalf("layers=%d, want 2", len(layers))
	}

	byName := map[string]*mvt.Layer{}
	for _, l := range layers {
		byName[l.Name] = l
	}
	for _, name := range []string{TilesLayer, CentersLayer} {
		l, ok := byName[name]
		if !ok {
			t.Fatalf("missing layer %q", name)
		}
		if len(l.Features) != 1 {
			t.Fatalf("%s features=%d, want 1", name, len(l.Features))
		}
		if qk := l.Features[0].Properties["quadkey"]; qk != "21" {
			t.Fatalf("%s quadkey=%v, want 21", name, qk)
		}
	}
	if even := byName[TilesLayer].Features[0].Properties["even"]; even != false {
		t.Fatalf("even=%v, want false", even)
	}
}

func TestRenderOutOfRange(t *testing.T) {
	if _, err := Render(maptile.New(4, 0, 2)); err == nil {
		t.Fatal("expected error for x beyond zoom 2")
	}
	if _, err := Render(maptile.New(0, 0, 23)); err == nil {
		t.Fatal("expected error for zoom 23")
	}
}

func TestExport(t *testing.T) {
	opts := ExportOptions{
		Bound:   orb.Bound{Min: orb.Point{-179.9, -85}, Max: orb.Point{179.9, 85}},
		MinZoom: 0,
		MaxZoom: 2,
	}
	if n := Count(opts); n != 21 {
		t.Fatalf("count=%d, want 21", n)
	}

	var calls int
	var buf bytes.Buffer
	stats, err := Export(&buf, opts, func(done, total int) {
		calls++
		if total != 21 {
			t.Fatalf("total=%d, want 21", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tiles != 21 || calls != 21 {
		t.Fatalf("tiles=%d calls=%d, want 21", stats.Tiles, calls)
	}

	h, err := pmtiles.UnmarshalHeader(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if h.TileEntriesCount != 21 || h.MaxZoom != 2 || h.TileType != pmtiles.Mvt {
		t.Fatalf("header=%+v", h)
	}
	if int64(h.TileDataLength) != stats.Bytes {
		t.Fatalf("tile data=%d, stats=%d", h.TileDataLength, stats.Bytes)
	}
}

func TestExportBadRange(t *testing.T) {
	_, err := Export(&bytes.Buffer{}, ExportOptions{MinZoom: 3, MaxZoom: 1}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}
