package service

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/tilegrid/internal/cover"
	"github.com/joeblew999/tilegrid/internal/logging"
	"github.com/joeblew999/tilegrid/internal/overlay"
	"github.com/joeblew999/tilegrid/internal/quadkey"
)

func openMap(t *testing.T) (*MapService, *MapView) {
	t.Helper()
	svc := NewMapService(cover.TileCover{}, nil, logging.Discard())
	m, err := svc.Open()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.CloseAll)
	return svc, m
}

func world(zoom float64) overlay.Viewport {
	return overlay.ViewportFromBound(orb.Bound{Min: orb.Point{-200, -80}, Max: orb.Point{200, 80}}, zoom)
}

func receive(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestSetViewportPublishes(t *testing.T) {
	_, m := openMap(t)
	ch := m.Subscribe()

	cols, err := m.SetViewport(world(1.3))
	if err != nil {
		t.Fatal(err)
	}
	if len(cols.Tiles.Features) != 16 {
		t.Fatalf("tiles=%d, want 16", len(cols.Tiles.Features))
	}

	ev := receive(t, ch)
	up, ok := ev.Payload.(OverlayUpdate)
	if ev.Kind != EventOverlay || !ok {
		t.Fatalf("event=%+v", ev)
	}
	if up.Proximity != nil {
		t.Fatalf("proximity=%v at zoom 1.3", up.Proximity)
	}
	if len(m.Overlay().Collections.Tiles.Features) != 16 {
		t.Fatal("overlay not stored")
	}
}

func TestSetViewportProximity(t *testing.T) {
	_, m := openMap(t)
	v := overlay.ViewportFromBound(orb.Bound{Min: orb.Point{2.33, 48.85}, Max: orb.Point{2.35, 48.86}}, 14.2)
	if _, err := m.SetViewport(v); err != nil {
		t.Fatal(err)
	}
	p := m.Overlay().Proximity
	if p == nil {
		t.Fatal("proximity unset at zoom 14.2")
	}
	if !v.Polygon().Bound().Contains(*p) {
		t.Fatalf("proximity %v outside viewport", *p)
	}
}

func TestSearchPublishesFit(t *testing.T) {
	_, m := openMap(t)
	ch := m.Subscribe()

	if !m.Search(context.Background(), "12") {
		t.Fatal("Search returned false")
	}
	ev := receive(t, ch)
	fit, ok := ev.Payload.(FitBounds)
	if ev.Kind != EventFit || !ok {
		t.Fatalf("event=%+v", ev)
	}
	if !fit.Bound.Equal(maptile.New(2, 1, 2).Bound()) {
		t.Fatalf("bound=%v", fit.Bound)
	}
}

func TestSearchInvalidIsSilent(t *testing.T) {
	_, m := openMap(t)
	ch := m.Subscribe()

	if m.Search(context.Background(), "X9") {
		t.Fatal("Search returned true for X9")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestClick(t *testing.T) {
	_, m := openMap(t)
	if _, ok := m.Click(orb.Point{10, 10}); ok {
		t.Fatal("click hit before any overlay")
	}
	if _, err := m.SetViewport(world(1.3)); err != nil {
		t.Fatal(err)
	}

	ch := m.Subscribe()
	p := orb.Point{10, 10}
	qk, ok := m.Click(p)
	if !ok {
		t.Fatal("click missed")
	}
	if want := quadkey.FromTile(maptile.At(p, 2)); qk != want {
		t.Fatalf("quadkey=%q, want %q", qk, want)
	}
	ev := receive(t, ch)
	if c, ok := ev.Payload.(Copied); !ok || c.Quadkey != qk {
		t.Fatalf("event=%+v", ev)
	}
}

func TestClickWorldCopy(t *testing.T) {
	_, m := openMap(t)
	if _, err := m.SetViewport(world(1.3)); err != nil {
		t.Fatal(err)
	}

	qk, ok := m.Click(orb.Point{-160, 10})
	if !ok || qk != "02" {
		t.Fatalf("quadkey=%q ok=%v, want 02", qk, ok)
	}
	for _, lng := range []float64{200, -520} {
		got, ok := m.Click(orb.Point{lng, 10})
		if !ok || got != qk {
			t.Fatalf("lng %v: quadkey=%q ok=%v, want %q", lng, got, ok, qk)
		}
	}
}

func TestRegistry(t *testing.T) {
	svc, m := openMap(t)
	if got, ok := svc.Get(m.ID); !ok || got != m {
		t.Fatal("Get did not return opened map")
	}
	ch := m.Subscribe()

	if err := svc.Close(m.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("subscription still open after close")
	}
	if _, err := m.SetViewport(world(1)); err != ErrClosed {
		t.Fatalf("err=%v, want ErrClosed", err)
	}
	if err := svc.Close(m.ID); err == nil {
		t.Fatal("second close succeeded")
	}
	if svc.Len() != 0 {
		t.Fatalf("len=%d, want 0", svc.Len())
	}
}

func TestEventBusDropsForSlowSubscriber(t *testing.T) {
	b := NewEventBus()
	ch := b.Subscribe()
	for i := 0; i < 100; i++ {
		b.Publish(Event{Kind: EventOverlay})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered=%d, want %d", len(ch), cap(ch))
	}
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
}
