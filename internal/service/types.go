// Package service holds the per-browser map state: one MapView per open
// map, the registry that owns them, and the events they publish.
package service

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/tilegrid/internal/navigate"
	"github.com/joeblew999/tilegrid/internal/overlay"
)

// OverlayUpdate is published after every viewport change.
type OverlayUpdate struct {
	Collections overlay.Collections
	// Proximity is the geocoder bias point, nil when zoomed out.
	Proximity *orb.Point
}

// FitBounds asks the map to zoom to a box.
type FitBounds struct {
	Bound   orb.Bound
	Padding navigate.Padding
}

// Copied reports a quadkey that should go to the clipboard.
type Copied struct {
	Quadkey string
}
