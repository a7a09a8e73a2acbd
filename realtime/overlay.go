package realtime

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nrrrt/raptor/timetable"
)

// Overlay is the mutable realtime state layered on a read-only
// timetable.Timetable (spec §4.4, §5). It implements
// timetable.RealtimeView so Timetable.Stoptime can read it without
// importing this package.
type Overlay struct {
	tt        *timetable.Timetable
	tripIndex StringLookup // trip_id -> VJ index
	stopIndex StringLookup // stop_id -> stop index

	vjToJP map[uint32]uint32 // built once: VJ index -> owning JP

	origActiveMask  map[uint32]uint32               // VJ -> mask snapshotted before first mutation
	overlayStops    map[uint32][]timetable.StopTime  // VJ -> absolute-rtime overlay stop-times
	forkedJP        map[string]uint32                // "@"+trip_id -> forked JP index
	stopReverse     map[uint32][]uint32              // stop -> forked JPs touching it

	drops int
}

// StringLookup is the minimal interface Overlay needs from
// stringindex.Index, kept narrow so realtime doesn't import
// stringindex directly beyond this seam (mirrors the Timetable/RealtimeView
// split: each package depends on the smallest interface it needs).
type StringLookup interface {
	Get(key string) (uint32, bool)
}

// NewOverlay builds an Overlay over tt. tripIndex resolves a
// TripUpdate's trip_id to a VJ index (spec §4.4 step 1); stopIndex
// resolves a per-stop update's stop_id to a stop index.
func NewOverlay(tt *timetable.Timetable, tripIndex, stopIndex StringLookup) *Overlay {
	o := &Overlay{
		tt:             tt,
		tripIndex:      tripIndex,
		stopIndex:      stopIndex,
		vjToJP:         map[uint32]uint32{},
		origActiveMask: map[uint32]uint32{},
		overlayStops:   map[uint32][]timetable.StopTime{},
		forkedJP:       map[string]uint32{},
		stopReverse:    map[uint32][]uint32{},
	}
	for jpIdx := range tt.JourneyPatterns {
		jp := uint32(jpIdx)
		p := &tt.JourneyPatterns[jp]
		for i := uint32(0); i < p.NVJs; i++ {
			o.vjToJP[p.VJOffset+i] = jp
		}
	}
	return o
}

// StopTimesFor implements timetable.RealtimeView.
func (o *Overlay) StopTimesFor(vj uint32) ([]timetable.StopTime, bool) {
	rows, ok := o.overlayStops[vj]
	return rows, ok
}

// JPsAtStop implements timetable.RealtimeView: forked JPs touching
// stop, in addition to (not replacing) the static tt.JPsForStop(stop).
func (o *Overlay) JPsAtStop(stop uint32) []uint32 {
	return o.stopReverse[stop]
}

// Drops reports how many updates have been silently dropped so far
// (spec §7 OverlayDrop; logged, not surfaced as an error).
func (o *Overlay) Drops() int { return o.drops }

func (o *Overlay) drop(tripID, reason string) {
	o.drops++
	log.Warn().Str("trip_id", tripID).Str("reason", reason).Msg("dropped realtime update")
}

// Apply processes a batch of decoded TripUpdates (spec §4.4).
func (o *Overlay) Apply(updates []TripUpdate) {
	for _, u := range updates {
		o.applyOne(u)
	}
}

func (o *Overlay) applyOne(u TripUpdate) {
	vj, ok := o.tripIndex.Get(u.TripID)
	if !ok {
		o.drop(u.TripID, "unknown trip_id")
		return
	}

	calDay, ok := parseCalDay(u.StartDate, o.tt.CalendarStartTime)
	if !ok || calDay > 31 {
		o.drop(u.TripID, "start_date out of range")
		return
	}

	o.snapshotMask(vj)

	switch u.Relationship {
	case TripCanceled:
		o.tt.VehicleJourneys[vj].ActiveMask &^= 1 << calDay

	case TripScheduled:
		o.tt.VehicleJourneys[vj].ActiveMask |= 1 << calDay
		if len(u.StopTimes) > 0 {
			o.applyStopTimeUpdates(vj, calDay, u)
		}

	default:
		o.drop(u.TripID, "unsupported schedule_relationship")
	}
}

// parseCalDay converts a GTFS-RT start_date (YYYYMMDD) to a day index
// relative to the timetable's calendar_start_time (spec §4.4 step 2).
func parseCalDay(startDate string, calendarStart uint64) (uint32, bool) {
	if startDate == "" {
		return 0, false
	}
	t, err := time.Parse("20060102", startDate)
	if err != nil {
		return 0, false
	}
	epoch := uint64(t.Unix())
	if epoch < calendarStart {
		return 0, false
	}
	return uint32((epoch - calendarStart) / 86400), true
}

func (o *Overlay) snapshotMask(vj uint32) {
	if _, ok := o.origActiveMask[vj]; !ok {
		o.origActiveMask[vj] = o.tt.VehicleJourneys[vj].ActiveMask
	}
}

// applyStopTimeUpdates classifies and dispatches (spec §4.4 step 4).
func (o *Overlay) applyStopTimeUpdates(vj uint32, calDay uint32, u TripUpdate) {
	if len(u.StopTimes) == 0 {
		o.clearOverlay(vj)
		return
	}

	sorted := append([]StopTimeUpdate(nil), u.StopTimes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StopSequence < sorted[j].StopSequence })

	nStops := 0
	changed := false
	allNoData := true
	jp := o.vjToJP[vj]
	stopsForJP := o.tt.StopsForJP(jp)

	for _, su := range sorted {
		if su.Type != NoData {
			allNoData = false
		}
		if su.Type == Skipped {
			changed = true
			continue
		}
		if su.Type == NoData {
			continue
		}
		nStops++
		if !o.matchesOriginalSequence(su, stopsForJP) {
			changed = true
		}
	}

	switch {
	case allNoData || nStops == 0:
		o.clearOverlay(vj)
	case changed:
		o.fork(vj, jp, calDay, u.TripID, sorted)
	default:
		o.rewriteInPlace(vj, jp, sorted)
	}
}

// matchesOriginalSequence reports whether su names the stop already at
// that position in the JP's static stop list (an "ADDED" stop, in the
// original_source/tdata_realtime_expanded.c sense, is one that does
// not).
func (o *Overlay) matchesOriginalSequence(su StopTimeUpdate, stopsForJP []uint32) bool {
	idx := int(su.StopSequence)
	if idx < 0 || idx >= len(stopsForJP) {
		return false
	}
	if su.StopID == "" {
		return true
	}
	want, ok := o.stopIndex.Get(su.StopID)
	if !ok {
		return false
	}
	return stopsForJP[idx] == want
}

// clearOverlay restores vj to its original schedule (spec §4.4:
// "nodata or n_stops==0 -> clear the overlay for this VJ, restore
// schedule"; also tdata_clear_gtfsrt's _orig restore).
func (o *Overlay) clearOverlay(vj uint32) {
	delete(o.overlayStops, vj)
	if orig, ok := o.origActiveMask[vj]; ok {
		o.tt.VehicleJourneys[vj].ActiveMask = orig
		delete(o.origActiveMask, vj)
	}
}

// rewriteInPlace applies delay-bearing updates to vj's overlay
// stop-times array, propagating a carried departure delay across any
// stop sequence gap between two updates, and to the tail after the
// last update (spec §4.4 step "in-place", grounded on
// tdata_realtime_apply_tripupdates).
func (o *Overlay) rewriteInPlace(vj uint32, jp uint32, sorted []StopTimeUpdate) {
	p := &o.tt.JourneyPatterns[jp]
	rows, ok := o.overlayStops[vj]
	if !ok {
		rows = make([]timetable.StopTime, p.NStops)
		for i := uint32(0); i < p.NStops; i++ {
			rows[i] = o.tt.StopTimes[p.StopTimesOffset+(vj-p.VJOffset)*p.NStops+i]
			rows[i].Arrival += o.tt.VehicleJourneys[vj].BeginTime
			rows[i].Departure += o.tt.VehicleJourneys[vj].BeginTime
		}
	}

	var carryDelay time.Duration
	carrying := false
	cursor := 0
	for _, su := range sorted {
		if su.Type != Scheduled {
			continue
		}
		target := int(su.StopSequence)
		if target < 0 || target >= len(rows) {
			continue
		}
		for i := cursor; i < target; i++ {
			if carrying {
				rows[i].Arrival = addDelay(rows[i].Arrival, carryDelay)
				rows[i].Departure = addDelay(rows[i].Departure, carryDelay)
			}
		}
		if su.ArrivalIsSet {
			rows[target].Arrival = addDelay(rows[target].Arrival, su.ArrivalDelay)
		}
		if su.DepartureIsSet {
			rows[target].Departure = addDelay(rows[target].Departure, su.DepartureDelay)
			carryDelay = su.DepartureDelay
			carrying = true
		}
		cursor = target + 1
	}
	if carrying {
		for i := cursor; i < len(rows); i++ {
			rows[i].Arrival = addDelay(rows[i].Arrival, carryDelay)
			rows[i].Departure = addDelay(rows[i].Departure, carryDelay)
		}
	}

	o.overlayStops[vj] = rows
}

// rtimeOfDay converts an absolute timestamp to an rtime offset from
// that day's UTC midnight, the same "relative to schedule midnight"
// shape the schedule stop-times array uses (spec §4.1 step 1's
// time_base=0 branch expects a per-point value to still add a
// ServiceDay midnight afterward).
func rtimeOfDay(t time.Time) timetable.RTime {
	secOfDay := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return timetable.RTime(secOfDay / 4)
}

func addDelay(t timetable.RTime, d time.Duration) timetable.RTime {
	delta := int64(d / time.Second / 4)
	v := int64(t) + delta
	if v < 0 {
		v = 0
	}
	if v > int64(timetable.ThreeDays) {
		return timetable.Unreached
	}
	return timetable.RTime(v)
}

type forkPoint struct {
	stop uint32
	st   timetable.StopTime
}

// fork constructs or reuses a single-VJ JourneyPattern for tripID's
// rewritten stop sequence (spec §4.4 step "changed -> fork", grounded
// on tdata_new_journey_pattern / tdata_realtime_changed_journey_pattern,
// tdata_realtime_expanded.c:235-300). The original's radix-tree lookup
// on "@"+trip_id before allocating is mirrored here via o.forkedJP: a
// second reroute of the same trip resizes/rewrites the existing forked
// JP in place instead of leaking a second one (tdata_realtime_expanded.c:
// "Fixes the case where a vj changes a second time"). The original VJ's
// activity for this calendar day was already set by Apply before
// dispatch; fork (or the reuse path) clears it again on the original
// and, on first creation only, sets it on the copy.
func (o *Overlay) fork(vj uint32, origJP uint32, calDay uint32, tripID string, sorted []StopTimeUpdate) {
	origStops := o.tt.StopsForJP(origJP)

	var points []forkPoint
	for _, su := range sorted {
		if su.Type == Skipped || su.Type == NoData {
			continue
		}
		stop := o.resolveForkStop(su, origStops)
		if stop == timetable.None {
			continue
		}
		st := timetable.StopTime{}
		if su.ArrivalIsSet {
			st.Arrival = rtimeOfDay(su.ArrivalTime)
		}
		if su.DepartureIsSet {
			st.Departure = rtimeOfDay(su.DepartureTime)
		}
		points = append(points, forkPoint{stop: stop, st: st})
	}
	if len(points) < 2 {
		o.drop(tripID, "fork: fewer than 2 usable points")
		return
	}

	o.tt.VehicleJourneys[vj].ActiveMask &^= 1 << calDay

	key := "@" + tripID
	if existingJP, ok := o.forkedJP[key]; ok {
		o.rewriteForkedJP(existingJP, points)
		return
	}

	origP := &o.tt.JourneyPatterns[origJP]
	newStops, newStopTimes, newAttrs := forkArrays(points)

	newJPIdx := uint32(len(o.tt.JourneyPatterns))
	newVJIdx := uint32(len(o.tt.VehicleJourneys))
	newJPPointsOffset := uint32(len(o.tt.JPPoints))
	newStopTimesOffset := uint32(len(o.tt.StopTimes))

	o.tt.JPPoints = append(o.tt.JPPoints, newStops...)
	o.tt.JPPointAttrs = append(o.tt.JPPointAttrs, newAttrs...)
	o.tt.StopTimes = append(o.tt.StopTimes, newStopTimes...)

	minT, maxT := forkTimeBounds(newStopTimes)

	o.tt.JourneyPatterns = append(o.tt.JourneyPatterns, timetable.JourneyPattern{
		JPPointsOffset:       newJPPointsOffset,
		StopTimesOffset:      newStopTimesOffset,
		VJOffset:             newVJIdx,
		NStops:               uint32(len(points)),
		NVJs:                 1,
		Attributes:           origP.Attributes,
		MinTime:              minT,
		MaxTime:              maxT,
		HeadsignIndex:        origP.HeadsignIndex,
		AgencyIndex:          origP.AgencyIndex,
		LineCodeIndex:        origP.LineCodeIndex,
		ProductCategoryIndex: origP.ProductCategoryIndex,
	})
	o.tt.VehicleJourneys = append(o.tt.VehicleJourneys, timetable.VehicleJourney{
		StopTimesOffset: 0,
		BeginTime:       0,
		VJAttributes:    o.tt.VehicleJourneys[vj].VJAttributes,
		ActiveMask:      1 << calDay,
	})

	o.vjToJP[newVJIdx] = newJPIdx
	o.forkedJP[key] = newJPIdx

	for _, s := range newStops {
		o.addStopReverse(s, newJPIdx)
	}
}

// rewriteForkedJP rewrites an already-forked JP's stop sequence on a
// second (or later) reroute of the same trip (tdata_realtime_expanded.c:
// 257-276's "changed vehicle_journey being CHANGED again" branch).
// Stops it no longer touches are removed from the per-stop reverse
// index before the new stop set is linked in
// (tdata_rt_journey_patterns_at_stop_remove/_append).
func (o *Overlay) rewriteForkedJP(jpIdx uint32, points []forkPoint) {
	p := &o.tt.JourneyPatterns[jpIdx]
	oldStops := append([]uint32(nil), o.tt.StopsForJP(jpIdx)...)

	newStops, newStopTimes, newAttrs := forkArrays(points)

	if uint32(len(points)) == p.NStops {
		copy(o.tt.JPPoints[p.JPPointsOffset:], newStops)
		copy(o.tt.JPPointAttrs[p.JPPointsOffset:], newAttrs)
		copy(o.tt.StopTimes[p.StopTimesOffset:], newStopTimes)
	} else {
		p.JPPointsOffset = uint32(len(o.tt.JPPoints))
		p.StopTimesOffset = uint32(len(o.tt.StopTimes))
		p.NStops = uint32(len(points))
		o.tt.JPPoints = append(o.tt.JPPoints, newStops...)
		o.tt.JPPointAttrs = append(o.tt.JPPointAttrs, newAttrs...)
		o.tt.StopTimes = append(o.tt.StopTimes, newStopTimes...)
	}
	p.MinTime, p.MaxTime = forkTimeBounds(newStopTimes)

	for _, s := range oldStops {
		o.removeStopReverse(s, jpIdx)
	}
	for _, s := range newStops {
		o.addStopReverse(s, jpIdx)
	}
}

func forkArrays(points []forkPoint) ([]uint32, []timetable.StopTime, []timetable.JPPointAttr) {
	stops := make([]uint32, len(points))
	stopTimes := make([]timetable.StopTime, len(points))
	attrs := make([]timetable.JPPointAttr, len(points))
	for i, p := range points {
		stops[i] = p.stop
		stopTimes[i] = p.st
		attrs[i] = timetable.AttrBoarding | timetable.AttrAlighting
	}
	attrs[0] = timetable.AttrBoarding
	attrs[len(attrs)-1] = timetable.AttrAlighting
	return stops, stopTimes, attrs
}

func forkTimeBounds(stopTimes []timetable.StopTime) (min, max timetable.RTime) {
	min, max = stopTimes[0].Arrival, stopTimes[0].Arrival
	for _, st := range stopTimes {
		if st.Arrival < min {
			min = st.Arrival
		}
		if st.Departure > max {
			max = st.Departure
		}
	}
	return min, max
}

// addStopReverse links jp into stop's reverse index, deduplicating like
// tdata_rt_journey_patterns_at_stop_append.
func (o *Overlay) addStopReverse(stop, jp uint32) {
	for _, existing := range o.stopReverse[stop] {
		if existing == jp {
			return
		}
	}
	o.stopReverse[stop] = append(o.stopReverse[stop], jp)
}

// removeStopReverse unlinks jp from stop's reverse index (swap-remove,
// matching tdata_rt_journey_patterns_at_stop_remove's unordered delete).
func (o *Overlay) removeStopReverse(stop, jp uint32) {
	list := o.stopReverse[stop]
	for i, existing := range list {
		if existing == jp {
			list[i] = list[len(list)-1]
			o.stopReverse[stop] = list[:len(list)-1]
			return
		}
	}
}

// resolveForkStop finds the global stop index for su, falling back to
// the original JP's stop at the same sequence position when su carries
// no stop_id (an unchanged intermediate point echoed in the update).
func (o *Overlay) resolveForkStop(su StopTimeUpdate, origStops []uint32) uint32 {
	if su.StopID != "" {
		if idx, ok := o.stopIndex.Get(su.StopID); ok {
			return idx
		}
		return timetable.None
	}
	idx := int(su.StopSequence)
	if idx < 0 || idx >= len(origStops) {
		return timetable.None
	}
	return origStops[idx]
}

// Clear discards the overlay's stop-time rewrites and cancellations and
// unlinks every forked JP from the per-stop reverse index, restoring
// the original schedule (spec §4.4 step 1 "if deleted, free overlay
// and restore original calendar validity"; tdata_clear_gtfsrt). The
// forked JP and VJ records stay appended to the timetable's arrays,
// no longer reachable from any stop.
func (o *Overlay) Clear() {
	for vj, orig := range o.origActiveMask {
		if int(vj) < len(o.tt.VehicleJourneys) {
			o.tt.VehicleJourneys[vj].ActiveMask = orig
		}
	}
	o.origActiveMask = map[uint32]uint32{}
	o.overlayStops = map[uint32][]timetable.StopTime{}
	o.forkedJP = map[string]uint32{}
	o.stopReverse = map[uint32][]uint32{}
	o.drops = 0
}
