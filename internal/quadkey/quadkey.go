// Package quadkey converts between slippy-map tiles and their base-4
// quadkey strings, and derives the display geometry of a tile.
package quadkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// MaxLength is the longest quadkey that fits the 64-bit key orb uses.
const MaxLength = 32

// ErrInvalidQuadkey is returned for text that is not a quadkey.
var ErrInvalidQuadkey = errors.New("invalid quadkey")

// FromTile returns the quadkey of t. Zoom 0 has the empty quadkey.
func FromTile(t maptile.Tile) string {
	if t.Z == 0 {
		return ""
	}
	s := strconv.FormatUint(t.Quadkey(), 4)
	if pad := int(t.Z) - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}

// ToTile parses a quadkey. Each character must be one of 0-3.
func ToTile(qk string) (maptile.Tile, error) {
	if qk == "" {
		return maptile.New(0, 0, 0), nil
	}
	if len(qk) > MaxLength {
		return maptile.Tile{}, fmt.Errorf("%w %q: longer than %d digits", ErrInvalidQuadkey, qk, MaxLength)
	}
	for i := 0; i < len(qk); i++ {
		if qk[i] < '0' || qk[i] > '3' {
			return maptile.Tile{}, fmt.Errorf("%w %q: digit %q at %d", ErrInvalidQuadkey, qk, qk[i], i)
		}
	}

	k, err := strconv.ParseUint(qk, 4, 64)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("%w %q: %v", ErrInvalidQuadkey, qk, err)
	}
	return maptile.FromQuadkey(k, maptile.Zoom(len(qk))), nil
}
