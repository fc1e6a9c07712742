package service

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/tilegrid/internal/cover"
	"github.com/joeblew999/tilegrid/internal/navigate"
	"github.com/joeblew999/tilegrid/internal/overlay"
)

// ErrClosed is returned by operations on a closed MapView.
var ErrClosed = errors.New("map view closed")

// MapView is the server side of one browser map: its last viewport,
// the grid overlay drawn over it, and the quadkey search box.
type MapView struct {
	ID string

	log     logrus.FieldLogger
	bus     *EventBus
	overlay *overlay.Overlay
	nav     *navigate.Navigator

	mu        sync.RWMutex
	viewport  overlay.Viewport
	proximity *orb.Point
	closed    bool
}

func newMapView(id string, c cover.Coverer, rec navigate.Recorder, log logrus.FieldLogger) *MapView {
	m := &MapView{
		ID:  id,
		log: log.WithField("map", id),
		bus: NewEventBus(),
	}
	m.overlay = overlay.New(c, nil)
	m.nav = navigate.New(m, rec, m.log)
	return m
}

// SetViewport records a move and redraws the grid. The new collections
// replace the old ones and are published to subscribers. Cover errors
// are returned to the caller.
func (m *MapView) SetViewport(v overlay.Viewport) (overlay.Collections, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return overlay.Collections{}, ErrClosed
	}

	cols, err := m.overlay.Update(v)
	if err != nil {
		return overlay.Collections{}, err
	}
	m.viewport = v
	m.proximity = nil
	if p, ok := overlay.Proximity(v); ok {
		m.proximity = &p
	}

	m.log.WithFields(logrus.Fields{
		"zoom":  cols.Zoom,
		"tiles": len(cols.Tiles.Features),
	}).Debug("overlay updated")
	m.bus.Publish(Event{MapID: m.ID, Kind: EventOverlay, Payload: OverlayUpdate{
		Collections: cols,
		Proximity:   m.proximity,
	}})
	return cols, nil
}

// Viewport returns the last viewport set.
func (m *MapView) Viewport() overlay.Viewport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewport
}

// Overlay returns the collections currently drawn.
func (m *MapView) Overlay() OverlayUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return OverlayUpdate{Collections: m.overlay.Current(), Proximity: m.proximity}
}

// Search handles the quadkey search box. Bad input is logged and
// ignored. Reports whether the map was asked to move.
func (m *MapView) Search(ctx context.Context, text string) bool {
	if m.isClosed() {
		return false
	}
	return m.nav.Submit(ctx, text)
}

// FitBounds publishes a request for the browser map to fit b.
func (m *MapView) FitBounds(b orb.Bound, p navigate.Padding) {
	m.bus.Publish(Event{MapID: m.ID, Kind: EventFit, Payload: FitBounds{
		Bound:   b,
		Padding: p,
	}})
}

// Click finds the drawn tile containing p and publishes its quadkey for
// the clipboard. A click outside every tile does nothing. Clicks on a
// repeated world copy are wrapped back onto the drawn grid.
func (m *MapView) Click(p orb.Point) (string, bool) {
	if m.isClosed() {
		return "", false
	}
	p = orb.Point{overlay.WrapLongitude(p[0]), p[1]}

	for _, f := range m.overlay.Current().Tiles.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok || !planar.PolygonContains(poly, p) {
			continue
		}
		qk, _ := f.Properties["quadkey"].(string)
		m.bus.Publish(Event{MapID: m.ID, Kind: EventCopied, Payload: Copied{Quadkey: qk}})
		return qk, true
	}
	return "", false
}

// Subscribe returns a channel of this map's events.
func (m *MapView) Subscribe() chan Event {
	return m.bus.Subscribe()
}

// Unsubscribe stops delivery to ch.
func (m *MapView) Unsubscribe(ch chan Event) {
	m.bus.Unsubscribe(ch)
}

// Close ends every subscription. Further updates fail with ErrClosed.
func (m *MapView) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.bus.Close()
}

func (m *MapView) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
