// Package navigate moves a map to the tile named by a quadkey.
package navigate

import (
	"context"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/tilegrid/internal/quadkey"
)

// Padding is the screen margin in pixels kept around a fitted box.
type Padding struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// DefaultPadding is used for every quadkey jump.
var DefaultPadding = Padding{Top: 200, Bottom: 200, Left: 200, Right: 200}

// Target is where a quadkey sends the map.
type Target struct {
	Quadkey string
	Tile    maptile.Tile
	Bound   orb.Bound
	Padding Padding
}

// Resolve parses user text into a Target. Surrounding whitespace is
// ignored.
func Resolve(text string) (Target, error) {
	qk := strings.TrimSpace(text)
	t, err := quadkey.ToTile(qk)
	if err != nil {
		return Target{}, err
	}
	return Target{
		Quadkey: qk,
		Tile:    t,
		Bound:   quadkey.Bound(t),
		Padding: DefaultPadding,
	}, nil
}

// BoundsFitter is the part of the map that can zoom to a box.
type BoundsFitter interface {
	FitBounds(b orb.Bound, p Padding)
}

// Recorder remembers successful jumps.
type Recorder interface {
	Record(ctx context.Context, qk string, t maptile.Tile) error
}

// Navigator handles quadkey search submissions for one map.
type Navigator struct {
	fitter   BoundsFitter
	recorder Recorder
	log      logrus.FieldLogger
}

// New creates a Navigator. recorder may be nil.
func New(fitter BoundsFitter, recorder Recorder, log logrus.FieldLogger) *Navigator {
	return &Navigator{fitter: fitter, recorder: recorder, log: log}
}

// Submit fits the map to the tile named by text. Text that is not a
// quadkey is logged and dropped: the map does not move and no error is
// returned. Reports whether the map moved.
func (n *Navigator) Submit(ctx context.Context, text string) bool {
	target, err := Resolve(text)
	if err != nil {
		n.log.WithError(err).WithField("input", text).Warn("ignoring quadkey search")
		return false
	}

	n.log.WithFields(logrus.Fields{
		"quadkey": target.Quadkey,
		"bound":   target.Bound,
	}).Debug("fitting map to quadkey")
	n.fitter.FitBounds(target.Bound, target.Padding)

	if n.recorder != nil {
		if err := n.recorder.Record(ctx, target.Quadkey, target.Tile); err != nil {
			n.log.WithError(err).Warn("recording navigation")
		}
	}
	return true
}
