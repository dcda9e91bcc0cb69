// Package sampler turns line features into the set of tiles needed to
// cover them at a fixed zoom level.
package sampler

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/mapfeed/tilewalk/internal/tiles"
)

// Cover walks every line feature in fc and accumulates the tiles likely
// to intersect it. Non-line geometries are skipped. The result is a
// heuristic superset: each sampled point contributes its full 3x3
// neighborhood so that sparse sampling cannot leave gaps along a segment.
func Cover(fc *geojson.FeatureCollection, z maptile.Zoom) maptile.Set {
	set := make(maptile.Set)
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			coverLine(g, z, set)
		case orb.MultiLineString:
			for _, ls := range g {
				coverLine(ls, z, set)
			}
		}
	}
	return set
}

func coverLine(ls orb.LineString, z maptile.Zoom, set maptile.Set) {
	for i := 0; i+1 < len(ls); i++ {
		CoverSegment(ls[i], ls[i+1], z, set)
	}
}

// CoverSegment samples points along the segment a-b and adds the clipped
// 3x3 neighborhood of each sampled point's tile to set. The sample count
// grows with the segment's angular extent, roughly one sample per tile
// width spanned, never fewer than two (the endpoints).
func CoverSegment(a, b orb.Point, z maptile.Zoom, set maptile.Set) {
	delta := math.Max(math.Abs(b.Lon()-a.Lon()), math.Abs(b.Lat()-a.Lat()))

	n := float64(uint64(1) << z)
	samples := int(math.Ceil(delta/360.0*n)) + 1
	if samples < 2 {
		samples = 2
	}

	for i := 0; i < samples; i++ {
		t := float64(i) / float64(samples-1)
		p := orb.Point{
			a.Lon() + (b.Lon()-a.Lon())*t,
			a.Lat() + (b.Lat()-a.Lat())*t,
		}

		tile, ok := tiles.At(p, z)
		if !ok {
			continue
		}
		for _, nb := range tiles.Neighborhood(tile) {
			set[nb] = true
		}
	}
}
