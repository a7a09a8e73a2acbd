package spatial

import "testing"

func TestQuerySortedByDistanceThenIndex(t *testing.T) {
	g := New()
	g.Insert(0, 52.52, 13.405)  // Berlin Hbf-ish
	g.Insert(1, 52.521, 13.406) // ~130m away
	g.Insert(2, 52.6, 13.405)   // far away

	res := g.Query(52.52, 13.405, 1000)
	if len(res) != 2 {
		t.Fatalf("expected 2 stops within 1km, got %d (%v)", len(res), res)
	}
	if res[0].Stop != 0 {
		t.Fatalf("expected closest stop to be the query point itself, got %d", res[0].Stop)
	}
	if res[0].Distance > res[1].Distance {
		t.Fatalf("results must be sorted by distance ascending")
	}
}

func TestClosestNoneWithinRadius(t *testing.T) {
	g := New()
	g.Insert(0, 0, 0)
	if _, ok := g.Closest(10, 10, 100); ok {
		t.Fatalf("expected no stop within radius")
	}
}

func TestQueryDeterministicTieBreak(t *testing.T) {
	g := New()
	g.Insert(5, 1, 1)
	g.Insert(2, 1, 1)
	g.Insert(9, 1, 1)

	res := g.Query(1, 1, 10)
	if len(res) != 3 {
		t.Fatalf("expected 3 equidistant stops, got %d", len(res))
	}
	if res[0].Stop != 2 || res[1].Stop != 5 || res[2].Stop != 9 {
		t.Fatalf("expected tie-break by ascending stop index, got %v", res)
	}
}
