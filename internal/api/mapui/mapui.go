// Package mapui contains the Datastar SSE handlers behind the map page.
//
// The page opens one event stream per map. Moves, quadkey searches and
// clicks are posted as signals; their effects come back over the stream
// as browser calls (tilegrid.setOverlay, tilegrid.fitBounds, clipboard
// writes) and signals.
package mapui

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/tilegrid/internal/api"
	"github.com/joeblew999/tilegrid/internal/humastar"
	"github.com/joeblew999/tilegrid/internal/overlay"
	"github.com/joeblew999/tilegrid/internal/service"
)

// SnackbarDuration is how long the "copied" banner stays up.
const SnackbarDuration = 2 * time.Second

// MapHandler serves the map page's event stream and signal posts.
type MapHandler struct {
	humastar.Handler
	maps *service.MapService
	log  logrus.FieldLogger
}

// NewMapHandler creates a new map handler.
func NewMapHandler(maps *service.MapService, log logrus.FieldLogger) *MapHandler {
	return &MapHandler{maps: maps, log: log}
}

func (h *MapHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/map/events", h.Events, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/viewport", h.Viewport, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/search", h.Search, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/click", h.Click, huma.OperationTags("map"))
}

type EventsInput struct {
	MapID string `query:"mapid" doc:"Map to attach to; a new map is opened when empty or unknown"`
}

// Events streams one map's updates. A map opened by this stream is
// closed when the stream ends.
func (h *MapHandler) Events(ctx context.Context, input *EventsInput) (*huma.StreamResponse, error) {
	m, ok := h.maps.Get(input.MapID)
	owned := false
	if !ok {
		var err error
		if m, err = h.maps.Open(); err != nil {
			return nil, huma.Error500InternalServerError("Failed to open map", err)
		}
		owned = true
	}

	return h.Stream(func(sse humastar.SSE) {
		ch := m.Subscribe()
		defer m.Unsubscribe(ch)
		if owned {
			defer h.maps.Close(m.ID)
		}

		if err := sse.Signals(map[string]any{"mapid": m.ID, "snackbar": false}); err != nil {
			return
		}
		if err := sendOverlay(sse, m.Overlay()); err != nil {
			return
		}

		var hide <-chan time.Time
		for {
			var err error
			select {
			case <-ctx.Done():
				return
			case <-hide:
				hide = nil
				err = sse.Signals(map[string]any{"snackbar": false})
			case ev, ok := <-ch:
				if !ok {
					return
				}
				switch p := ev.Payload.(type) {
				case service.OverlayUpdate:
					err = sendOverlay(sse, p)
				case service.FitBounds:
					err = sse.Call("tilegrid.fitBounds", boundArray(p.Bound), p.Padding)
				case service.Copied:
					if err = sse.Call("navigator.clipboard.writeText", p.Quadkey); err == nil {
						err = sse.Signals(map[string]any{"snackbar": true, "copied": p.Quadkey})
						hide = time.After(SnackbarDuration)
					}
				}
			}
			if err != nil {
				h.log.WithError(err).WithField("map", m.ID).Debug("event stream ended")
				return
			}
		}
	}), nil
}

func sendOverlay(sse humastar.SSE, up service.OverlayUpdate) error {
	if err := sse.Call("tilegrid.setOverlay", up.Collections.Tiles, up.Collections.Centers); err != nil {
		return err
	}
	return sse.Signals(map[string]any{
		"gridzoom":  uint32(up.Collections.Zoom),
		"proximity": up.Proximity,
	})
}

// boundArray is the [[w, s], [e, n]] form map libraries fit to.
func boundArray(b orb.Bound) [2]orb.Point {
	return [2]orb.Point{b.Min, b.Max}
}

func (h *MapHandler) lookup(id string) (*service.MapView, error) {
	m, ok := h.maps.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("map not found")
	}
	return m, nil
}

type viewportSignals struct {
	MapID    string           `json:"mapid"`
	Viewport overlay.Viewport `json:"viewport"`
}

// Viewport handles a map move: the overlay is rebuilt and pushed to the
// map's event stream.
func (h *MapHandler) Viewport(ctx context.Context, input *humastar.SignalsInput) (*struct{}, error) {
	var sig viewportSignals
	if err := input.Decode(&sig); err != nil {
		return nil, err
	}
	m, err := h.lookup(sig.MapID)
	if err != nil {
		return nil, err
	}
	if err := api.CheckSize(sig.Viewport); err != nil {
		return nil, err
	}

	if _, err := m.SetViewport(sig.Viewport); err != nil {
		if errors.Is(err, service.ErrClosed) {
			return nil, huma.Error404NotFound("map closed")
		}
		return nil, huma.Error500InternalServerError("Failed to update overlay", err)
	}
	return &struct{}{}, nil
}

// Search handles the quadkey search box. An invalid quadkey is logged
// by the map and the request still succeeds with nothing to do.
func (h *MapHandler) Search(ctx context.Context, input *humastar.SignalsInput) (*struct{}, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	m, err := h.lookup(signals.String("mapid"))
	if err != nil {
		return nil, err
	}
	m.Search(ctx, signals.String("quadkey"))
	return &struct{}{}, nil
}

// Click copies the quadkey of the drawn tile under the pointer.
func (h *MapHandler) Click(ctx context.Context, input *humastar.SignalsInput) (*struct{}, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	m, err := h.lookup(signals.String("mapid"))
	if err != nil {
		return nil, err
	}
	if !signals.Has("lng") || !signals.Has("lat") {
		return nil, huma.Error400BadRequest("lng and lat are required")
	}
	m.Click(orb.Point{signals.Float("lng"), signals.Float("lat")})
	return &struct{}{}, nil
}
