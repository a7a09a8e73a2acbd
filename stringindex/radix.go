// Package stringindex resolves GTFS-style string identifiers
// (stop_id, trip_id, route_id) to the dense uint32 indices the router
// operates on. Backed by github.com/armon/go-radix, grounded on
// _examples/other_examples/manifests/hashicorp-nomad/go.mod which
// wires the same library for exact-match string-keyspace lookup (see
// DESIGN.md). spec §1 lists this as an external-collaborator concern;
// router and timetable never import armon/go-radix directly, only
// this package does.
package stringindex

import "github.com/armon/go-radix"

// Index is a string -> uint32 lookup table.
type Index struct {
	tree *radix.Tree
}

// New returns an empty Index.
func New() *Index { return &Index{tree: radix.New()} }

// Put associates key with idx, overwriting any prior association.
func (ix *Index) Put(key string, idx uint32) {
	ix.tree.Insert(key, idx)
}

// Get resolves key to its index. ok is false if key is unknown.
func (ix *Index) Get(key string) (uint32, bool) {
	v, ok := ix.tree.Get(key)
	if !ok {
		return 0, false
	}
	return v.(uint32), true
}

// Delete removes key, if present.
func (ix *Index) Delete(key string) {
	ix.tree.Delete(key)
}

// Len reports the number of keys stored.
func (ix *Index) Len() int { return ix.tree.Len() }

// BuildFromSlice populates an Index from a dense string table (e.g.
// timetable.Timetable.StopIDs), where slice position is the index.
func BuildFromSlice(values []string) *Index {
	ix := New()
	for i, v := range values {
		if v == "" {
			continue
		}
		ix.Put(v, uint32(i))
	}
	return ix
}
