// Package spatial provides radius queries over stop coordinates
// (spec §4.2). It is backed by github.com/tidwall/rtree rather than a
// hand-rolled bucket grid, grounded on
// _examples/other_examples/manifests/OneBusAway-maglev/go.mod, which
// wires the same library for "stops near a point" in a transit routing
// backend (see DESIGN.md).
package spatial

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"
)

// earthRadiusMeters is used for the haversine distance and for
// converting a query radius into a lat/lon bounding box.
const earthRadiusMeters = 6371000.0

// Result is one stop found within a query radius.
type Result struct {
	Stop     uint32
	Distance float64 // meters
}

// HashGrid indexes stop coordinates for radius queries (spec §4.2).
// Despite the name (kept from spec.md's component list), it is backed
// by an R-tree rather than a uniform cell grid; the name denotes the
// role, not the implementation.
type HashGrid struct {
	tree rtree.RTreeG[uint32]
}

// New returns an empty HashGrid.
func New() *HashGrid { return &HashGrid{} }

// Insert adds stop at (lat, lon). Called once per stop at build time.
func (g *HashGrid) Insert(stop uint32, lat, lon float64) {
	p := [2]float64{lon, lat}
	g.tree.Insert(p, p, stop)
}

// Query returns every indexed stop within radiusMeters of (lat, lon),
// sorted by distance then by stop index for determinism (spec §4.2:
// "no duplicates across overlapping cells", "deterministic iteration
// order... tie-break by stop index").
func (g *HashGrid) Query(lat, lon, radiusMeters float64) []Result {
	dLat := radiusMeters / earthRadiusMeters * (180 / math.Pi)
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-9 {
		cosLat = 1e-9
	}
	dLon := radiusMeters / (earthRadiusMeters * cosLat) * (180 / math.Pi)

	min := [2]float64{lon - dLon, lat - dLat}
	max := [2]float64{lon + dLon, lat + dLat}

	var out []Result
	seen := map[uint32]bool{}
	g.tree.Search(min, max, func(bmin, _ [2]float64, stop uint32) bool {
		if seen[stop] {
			return true
		}
		seen[stop] = true
		d := haversine(lat, lon, bmin[1], bmin[0])
		if d <= radiusMeters {
			out = append(out, Result{Stop: stop, Distance: d})
		}
		return true
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Stop < out[j].Stop
	})
	return out
}

// Closest returns the single nearest stop within radiusMeters, or
// (0, false) if none is found (spec §4.2 closest()).
func (g *HashGrid) Closest(lat, lon, radiusMeters float64) (uint32, bool) {
	res := g.Query(lat, lon, radiusMeters)
	if len(res) == 0 {
		return 0, false
	}
	return res[0].Stop, true
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
