package realtime

import (
	"testing"
	"time"

	"github.com/nrrrt/raptor/timetable"
)

type mapLookup map[string]uint32

func (m mapLookup) Get(k string) (uint32, bool) { v, ok := m[k]; return v, ok }

func smallTimetable() *timetable.Timetable {
	// One JP, one VJ, two stops: S0 -> S1, 08:00 -> 08:10 (rtime units
	// of 4s: 08:00 = 7200*4=28800s -> /4=7200 rtime units... for test
	// simplicity we just use small round numbers, not real wall time).
	tt := &timetable.Timetable{
		Stops: []timetable.Stop{
			{StopRoutesOffset: 0, TransfersOffset: 0},
			{StopRoutesOffset: 1, TransfersOffset: 0},
			{StopRoutesOffset: 1, TransfersOffset: 0}, // sentinel
		},
		JourneyPatterns: []timetable.JourneyPattern{
			{JPPointsOffset: 0, StopTimesOffset: 0, VJOffset: 0, NStops: 2, NVJs: 1, MinTime: 0, MaxTime: 100},
			{JPPointsOffset: 2, StopTimesOffset: 2, VJOffset: 1, NStops: 0, NVJs: 0}, // sentinel
		},
		VehicleJourneys: []timetable.VehicleJourney{
			{StopTimesOffset: 0, BeginTime: 0, ActiveMask: 0x1},
			{}, // sentinel
		},
		StopTimes: []timetable.StopTime{
			{Arrival: 0, Departure: 0},
			{Arrival: 10, Departure: 10},
		},
		JPPoints:     []uint32{0, 1},
		JPPointAttrs: []timetable.JPPointAttr{timetable.AttrBoarding, timetable.AttrAlighting},
		StopRoutes:   []uint32{0},
	}
	return tt
}

func TestApplyCancelThenUncancelRestoresMask(t *testing.T) {
	tt := smallTimetable()
	trips := mapLookup{"trip0": 0}
	stops := mapLookup{"s0": 0, "s1": 1}
	ov := NewOverlay(tt, trips, stops)

	tt.VehicleJourneys[0].ActiveMask = 0x3 // runs on days 0 and 1
	origMask := tt.VehicleJourneys[0].ActiveMask

	ov.Apply([]TripUpdate{{TripID: "trip0", StartDate: "19700102", Relationship: TripCanceled}})
	if tt.VehicleJourneys[0].ActiveMask&(1<<1) != 0 {
		t.Fatalf("expected day bit cleared after cancel")
	}

	ov.Apply([]TripUpdate{{TripID: "trip0", StartDate: "19700102", Relationship: TripScheduled}})
	if tt.VehicleJourneys[0].ActiveMask&(1<<1) == 0 {
		t.Fatalf("expected day bit restored after un-cancel")
	}
	if tt.VehicleJourneys[0].ActiveMask != origMask {
		t.Fatalf("expected active mask %#x restored, got %#x", origMask, tt.VehicleJourneys[0].ActiveMask)
	}
}

func TestApplyEmptyFeedLeavesTimetableUnchanged(t *testing.T) {
	tt := smallTimetable()
	trips := mapLookup{"trip0": 0}
	stops := mapLookup{"s0": 0, "s1": 1}
	ov := NewOverlay(tt, trips, stops)

	before := tt.VehicleJourneys[0].ActiveMask
	ov.Apply(nil)
	if tt.VehicleJourneys[0].ActiveMask != before {
		t.Fatalf("empty feed must not mutate timetable")
	}
	if ov.Drops() != 0 {
		t.Fatalf("empty feed must not drop anything")
	}
}

func TestApplyUnknownTripDrops(t *testing.T) {
	tt := smallTimetable()
	ov := NewOverlay(tt, mapLookup{}, mapLookup{})
	ov.Apply([]TripUpdate{{TripID: "ghost", StartDate: "19700102", Relationship: TripCanceled}})
	if ov.Drops() != 1 {
		t.Fatalf("expected 1 drop for unknown trip_id, got %d", ov.Drops())
	}
}

func TestRewriteInPlacePropagatesDelay(t *testing.T) {
	tt := smallTimetable()
	trips := mapLookup{"trip0": 0}
	stops := mapLookup{"s0": 0, "s1": 1}
	ov := NewOverlay(tt, trips, stops)

	ov.Apply([]TripUpdate{{
		TripID:       "trip0",
		StartDate:    "19700102",
		Relationship: TripScheduled,
		StopTimes: []StopTimeUpdate{
			{StopID: "s0", StopSequence: 0, DepartureIsSet: true, DepartureDelay: 40 * time.Second},
		},
	}})

	rows, ok := ov.StopTimesFor(0)
	if !ok {
		t.Fatalf("expected an overlay to exist for vj 0")
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 overlay stop-time rows, got %d", len(rows))
	}
	// 40 s is 10 rtime units; s1's schedule times (10/10) carry it to 20/20.
	if rows[1].Arrival != 20 || rows[1].Departure != 20 {
		t.Fatalf("expected s0's departure delay carried to s1 (20/20), got %d/%d", rows[1].Arrival, rows[1].Departure)
	}
}

// rerouteUpdate builds a TripUpdate whose stop sequence diverges from
// smallTimetable's static JP0 (S0->S1) by inserting a third stop s2
// between them, forcing applyStopTimeUpdates' changed-sequence branch
// into fork rather than rewriteInPlace.
func rerouteUpdate() TripUpdate {
	base := time.Date(1970, 1, 2, 8, 0, 0, 0, time.UTC)
	return TripUpdate{
		TripID:       "trip0",
		StartDate:    "19700102",
		Relationship: TripScheduled,
		StopTimes: []StopTimeUpdate{
			{StopID: "s0", StopSequence: 0, DepartureIsSet: true, DepartureTime: base},
			{StopID: "s2", StopSequence: 1, ArrivalIsSet: true, ArrivalTime: base.Add(5 * time.Minute), DepartureIsSet: true, DepartureTime: base.Add(5 * time.Minute)},
			{StopID: "s1", StopSequence: 2, ArrivalIsSet: true, ArrivalTime: base.Add(10 * time.Minute)},
		},
	}
}

func TestRerouteForksJourneyPattern(t *testing.T) {
	tt := smallTimetable()
	tt.Stops = append(tt.Stops[:2], timetable.Stop{StopRoutesOffset: 1, TransfersOffset: 0}, tt.Stops[2])
	trips := mapLookup{"trip0": 0}
	stops := mapLookup{"s0": 0, "s1": 1, "s2": 2}
	ov := NewOverlay(tt, trips, stops)

	nJPBefore := len(tt.JourneyPatterns)
	ov.Apply([]TripUpdate{rerouteUpdate()})

	if len(tt.JourneyPatterns) != nJPBefore+1 {
		t.Fatalf("expected exactly one new JP to be forked, had %d, now %d", nJPBefore, len(tt.JourneyPatterns))
	}
	forkedJP := uint32(nJPBefore)
	gotStops := tt.StopsForJP(forkedJP)
	wantStops := []uint32{0, 2, 1}
	if len(gotStops) != len(wantStops) {
		t.Fatalf("expected %d stops on forked JP, got %d", len(wantStops), len(gotStops))
	}
	for i, s := range wantStops {
		if gotStops[i] != s {
			t.Fatalf("forked JP stop %d: want %d, got %d", i, s, gotStops[i])
		}
	}
	if tt.VehicleJourneys[0].ActiveMask&(1<<1) != 0 {
		t.Fatalf("expected original vj's day bit cleared once forked")
	}

	foundAtS2 := false
	for _, jp := range ov.JPsAtStop(2) {
		if jp == forkedJP {
			foundAtS2 = true
		}
	}
	if !foundAtS2 {
		t.Fatalf("expected the forked JP to be linked into stop 2's reverse index")
	}
}

// TestRerouteTwiceReusesForkedJourneyPattern exercises a second reroute
// update for the same trip, diverting through a different mid-route
// stop (s3 instead of s2): it must resize/rewrite the JP created by
// the first reroute rather than allocate a second, independent fork,
// and must vacate s2's reverse-index entry in favor of s3's.
func TestRerouteTwiceReusesForkedJourneyPattern(t *testing.T) {
	tt := smallTimetable()
	tt.Stops = append(tt.Stops[:2],
		timetable.Stop{StopRoutesOffset: 1, TransfersOffset: 0}, // s2
		timetable.Stop{StopRoutesOffset: 1, TransfersOffset: 0}, // s3
		tt.Stops[2], // sentinel
	)
	trips := mapLookup{"trip0": 0}
	stops := mapLookup{"s0": 0, "s1": 1, "s2": 2, "s3": 3}
	ov := NewOverlay(tt, trips, stops)

	ov.Apply([]TripUpdate{rerouteUpdate()})
	nJPAfterFirst := len(tt.JourneyPatterns)
	forkedJP := uint32(nJPAfterFirst - 1)

	base := time.Date(1970, 1, 3, 8, 0, 0, 0, time.UTC)
	ov.Apply([]TripUpdate{{
		TripID:       "trip0",
		StartDate:    "19700103",
		Relationship: TripScheduled,
		StopTimes: []StopTimeUpdate{
			{StopID: "s0", StopSequence: 0, DepartureIsSet: true, DepartureTime: base},
			{StopID: "s3", StopSequence: 1, ArrivalIsSet: true, ArrivalTime: base.Add(5 * time.Minute), DepartureIsSet: true, DepartureTime: base.Add(5 * time.Minute)},
			{StopID: "s1", StopSequence: 2, ArrivalIsSet: true, ArrivalTime: base.Add(10 * time.Minute)},
		},
	}})

	if len(tt.JourneyPatterns) != nJPAfterFirst {
		t.Fatalf("expected the second reroute to reuse the existing forked JP, not allocate another: had %d JPs, now %d", nJPAfterFirst, len(tt.JourneyPatterns))
	}

	gotStops := tt.StopsForJP(forkedJP)
	wantStops := []uint32{0, 3, 1}
	if len(gotStops) != len(wantStops) {
		t.Fatalf("expected %d stops on re-rewritten forked JP, got %d", len(wantStops), len(gotStops))
	}
	for i, s := range wantStops {
		if gotStops[i] != s {
			t.Fatalf("re-rewritten forked JP stop %d: want %d, got %d", i, s, gotStops[i])
		}
	}

	for _, jp := range ov.JPsAtStop(2) {
		if jp == forkedJP {
			t.Fatalf("expected stop 2 (s2) to be vacated from the reverse index once the reroute dropped it")
		}
	}
	foundAtS3 := false
	for _, jp := range ov.JPsAtStop(3) {
		if jp == forkedJP {
			foundAtS3 = true
		}
	}
	if !foundAtS3 {
		t.Fatalf("expected stop 3 (s3) to carry the forked JP after the second reroute")
	}
}

func TestClearResetsAllOverlays(t *testing.T) {
	tt := smallTimetable()
	trips := mapLookup{"trip0": 0}
	stops := mapLookup{"s0": 0, "s1": 1}
	ov := NewOverlay(tt, trips, stops)
	before := tt.VehicleJourneys[0].ActiveMask

	ov.Apply([]TripUpdate{{TripID: "trip0", StartDate: "19700102", Relationship: TripCanceled}})
	ov.Clear()

	if tt.VehicleJourneys[0].ActiveMask != before {
		t.Fatalf("Clear must restore original active mask")
	}
	if _, ok := ov.StopTimesFor(0); ok {
		t.Fatalf("Clear must drop overlay stop-times")
	}
}
