package timetable

// StopsForJP returns the global stop indices visited by jp, in
// schedule order (spec §4.1 stops_for_jp).
func (tt *Timetable) StopsForJP(jp uint32) []uint32 {
	p := &tt.JourneyPatterns[jp]
	return tt.JPPoints[p.JPPointsOffset : p.JPPointsOffset+p.NStops]
}

// JPPointAttrsForJP returns the boarding/alighting attribute per point,
// parallel to StopsForJP.
func (tt *Timetable) JPPointAttrsForJP(jp uint32) []JPPointAttr {
	p := &tt.JourneyPatterns[jp]
	return tt.JPPointAttrs[p.JPPointsOffset : p.JPPointsOffset+p.NStops]
}

// VJsForJP returns the VJ indices (into tt.VehicleJourneys) running
// jp, in no particular order beyond insertion (spec §4.1 vjs_for_jp).
func (tt *Timetable) VJsForJP(jp uint32) []uint32 {
	p := &tt.JourneyPatterns[jp]
	out := make([]uint32, p.NVJs)
	for i := uint32(0); i < p.NVJs; i++ {
		out[i] = p.VJOffset + i
	}
	return out
}

// JPsForStop returns the JPs serving stop, in the order they are stored
// in StopRoutes. The round scan does not depend on this order: it
// visits flagged JPs in ascending index order through a bitset.
func (tt *Timetable) JPsForStop(stop uint32) []uint32 {
	lo := tt.Stops[stop].StopRoutesOffset
	hi := tt.Stops[stop+1].StopRoutesOffset
	return tt.StopRoutes[lo:hi]
}

// TransfersForStop returns the foot-transfer list out of stop.
func (tt *Timetable) TransfersForStop(stop uint32) []Transfer {
	lo := tt.Stops[stop].TransfersOffset
	hi := tt.Stops[stop+1].TransfersOffset
	out := make([]Transfer, hi-lo)
	for i := lo; i < hi; i++ {
		out[i-lo] = Transfer{TargetStop: tt.TransferTargets[i], DistMeters: tt.TransferDistances[i]}
	}
	return out
}

// ServiceDay is one of yesterday/today/tomorrow relative to a query's
// calendar day (spec §3 ServiceDay row, §4.3 Service-day setup).
type ServiceDay struct {
	Midnight       RTime
	Mask           uint32
	ApplyRealtime  bool
}

// stopTimeRow returns the schedule stop-time for (jp, vjOffset, jpPoint).
func (tt *Timetable) stopTimeRow(jp uint32, vjOffset, jpPoint uint32) StopTime {
	p := &tt.JourneyPatterns[jp]
	// VJ rows are laid out contiguously: row (vjOffset-p.VJOffset) has
	// NStops stop-times starting at p.StopTimesOffset.
	row := vjOffset - p.VJOffset
	idx := p.StopTimesOffset + row*p.NStops + jpPoint
	return tt.StopTimes[idx]
}

// Stoptime is the central accessor primitive (spec §4.1): resolves the
// absolute rtime at (jp, vjOffset, jpPoint) under arrive/depart
// semantics and a chosen ServiceDay, honoring a realtime overlay when
// present and enabled for that day.
func (tt *Timetable) Stoptime(jp uint32, vjOffset uint32, jpPoint uint32, arrive bool, sd ServiceDay) RTime {
	var base uint32
	if tt.RT != nil && sd.ApplyRealtime {
		if rows, ok := tt.RT.StopTimesFor(vjOffset); ok {
			st := rows[jpPoint]
			if arrive {
				base = uint32(st.Arrival)
			} else {
				base = uint32(st.Departure)
			}
			return addMidnight(base, sd.Midnight)
		}
	}
	vj := &tt.VehicleJourneys[vjOffset]
	st := tt.stopTimeRow(jp, vjOffset, jpPoint)
	if arrive {
		base = uint32(st.Arrival)
	} else {
		base = uint32(st.Departure)
	}
	base += uint32(vj.BeginTime)
	return addMidnight(base, sd.Midnight)
}

// addMidnight adds a ServiceDay's midnight offset to a schedule-relative
// rtime, returning Unreached on wraparound (spec §4.1 step 4).
func addMidnight(base uint32, midnight RTime) RTime {
	sum := base + uint32(midnight)
	if sum > uint32(ThreeDays) {
		return Unreached
	}
	return RTime(sum)
}
