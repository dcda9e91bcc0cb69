// Package tiles maps WGS84 coordinates onto a fixed-zoom slippy tile grid.
package tiles

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// At converts a lon/lat point to the tile containing it at zoom z.
// The second return is false when the point projects outside the valid
// index range, which happens near the poles where the web-Mercator
// projection diverges and past the antimeridian.
func At(p orb.Point, z maptile.Zoom) (maptile.Tile, bool) {
	n := float64(uint64(1) << z)

	x := (p.Lon() + 180.0) / 360.0 * n

	latRad := p.Lat() * math.Pi / 180.0
	y := (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n

	// Comparisons are written so NaN projections also fall through.
	if !(x >= 0 && x < n && y >= 0 && y < n) {
		return maptile.Tile{}, false
	}

	return maptile.New(uint32(x), uint32(y), z), true
}

// Neighborhood returns the 3x3 block of tiles centered on t, clipped to
// the valid index range at t's zoom. The center tile is included.
func Neighborhood(t maptile.Tile) []maptile.Tile {
	max := int64(uint64(1)<<t.Z) - 1
	block := make([]maptile.Tile, 0, 9)

	for dy := int64(-1); dy <= 1; dy++ {
		for dx := int64(-1); dx <= 1; dx++ {
			x := int64(t.X) + dx
			y := int64(t.Y) + dy
			if x < 0 || x > max || y < 0 || y > max {
				continue
			}
			block = append(block, maptile.New(uint32(x), uint32(y), t.Z))
		}
	}

	return block
}

// Key returns the "x/y" form used by the negative cache and the journal.
// The zoom is fixed for a whole run, so it is not part of the key.
func Key(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d", t.X, t.Y)
}

// Path returns the storage key of the tile image, relative to the
// output root.
func Path(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d.png", t.X, t.Y)
}
