package router

import (
	"github.com/nrrrt/raptor/timetable"
)

// defaultWalkComp is the street-network detour compensation applied to
// straight-line distance before converting to walk time (spec §4.3
// "distance × WALK_COMP / walk_speed"); 1.3 is a commonly used
// pedestrian detour factor.
const defaultWalkComp = 1.3

func secToRTime(seconds float64) timetable.RTime {
	if seconds < 0 {
		seconds = 0
	}
	v := seconds / 4
	if v > float64(timetable.ThreeDays) {
		return timetable.Unreached
	}
	return timetable.RTime(v)
}

// resolveOrigin implements spec §4.3 "Origin/destination resolution"
// for the origin side, returning the stop index used as the
// reconstruction walk-back terminus.
func (r *Router) resolveOrigin(req *Request, sc *scratch, days [3]timetable.ServiceDay) (uint32, error) {
	switch {
	case req.OnboardVJ != timetable.None:
		return r.resolveOnboard(req, sc, days)

	case req.FromCoord != nil:
		if r.grid == nil {
			return timetable.None, invalidRequest("coordinate origin requires a spatial index")
		}
		near := r.grid.Query(req.FromCoord.Lat, req.FromCoord.Lon, req.MaxWalkDistance)
		if len(near) == 0 {
			return timetable.None, invalidRequest("no stop within walking distance of origin coordinate")
		}
		for _, n := range near {
			walkSecs := n.Distance * defaultWalkComp / req.WalkSpeed
			var t timetable.RTime
			if req.ArriveBy {
				t = subRTime(req.Time, secToRTime(walkSecs))
			} else {
				t = addRTime(req.Time, secToRTime(walkSecs))
			}
			r.seed(sc, n.Stop, t)
		}
		return near[0].Stop, nil

	default:
		origin := req.From
		if req.ArriveBy {
			origin = req.To
		}
		if origin == timetable.None {
			return timetable.None, invalidRequest("origin stop unresolved")
		}
		r.seed(sc, origin, req.Time)
		return origin, nil
	}
}

// resolveTarget resolves the destination side; for a coordinate target
// it picks the single closest stop (spec: "Target resolution for the
// other endpoint selects the closest single stop").
func (r *Router) resolveTarget(req *Request, sc *scratch) (uint32, error) {
	if req.ToCoord != nil {
		if r.grid == nil {
			return timetable.None, invalidRequest("coordinate destination requires a spatial index")
		}
		stop, ok := r.grid.Closest(req.ToCoord.Lat, req.ToCoord.Lon, req.MaxWalkDistance)
		if !ok {
			return timetable.None, invalidRequest("no stop within walking distance of destination coordinate")
		}
		return stop, nil
	}
	target := req.To
	if req.ArriveBy {
		target = req.From
	}
	return target, nil
}

// resolveOnboard locates the previous stop on req.OnboardVJ (spec
// §4.3: "locate the previous stop... latest stop whose departure
// precedes req.time"), seeds it, and flags the VJ's JP directly
// instead of going through transfer relaxation.
func (r *Router) resolveOnboard(req *Request, sc *scratch, days [3]timetable.ServiceDay) (uint32, error) {
	vj := req.OnboardVJ
	jp := r.vjJP(vj)
	if jp == timetable.None {
		return timetable.None, invalidRequest("onboard_vj %d not found", vj)
	}
	stops := r.tt.StopsForJP(jp)
	vjOffset := vj

	var prevPoint uint32 = timetable.None
	var prevTime timetable.RTime
	for pt := uint32(0); pt < uint32(len(stops)); pt++ {
		dep := r.tt.Stoptime(jp, vjOffset, pt, false, days[1])
		if dep == timetable.Unreached {
			continue
		}
		if dep <= req.Time {
			prevPoint = pt
			prevTime = dep
		} else {
			break
		}
	}
	if prevPoint == timetable.None {
		return timetable.None, invalidRequest("onboard_vj %d: no stop precedes request time", vj)
	}

	stop := stops[prevPoint]
	sc.bestTime[stop] = prevTime
	sc.states[1][stop].WalkTime = prevTime
	sc.states[1][stop].WalkFrom = stop
	sc.updatedRoutes.Set(jp)
	return stop, nil
}

// vjJP finds the JourneyPattern owning vj by scanning JP VJ ranges
// (linear but only used once per onboard query, not in the hot round
// loop).
func (r *Router) vjJP(vj uint32) uint32 {
	for jpIdx := range r.tt.JourneyPatterns {
		p := &r.tt.JourneyPatterns[jpIdx]
		if vj >= p.VJOffset && vj < p.VJOffset+p.NVJs {
			return uint32(jpIdx)
		}
	}
	return timetable.None
}

// seed writes an initial best_time and flags stop as updated (spec
// §4.3 "seed best_time[origin] = req.time; flag origin").
func (r *Router) seed(sc *scratch, stop uint32, t timetable.RTime) {
	if t == timetable.Unreached {
		return
	}
	sc.bestTime[stop] = t
	sc.states[1][stop].WalkTime = t
	sc.states[1][stop].WalkFrom = stop
	sc.updatedStops.Set(stop)
}

func addRTime(a, b timetable.RTime) timetable.RTime {
	if a == timetable.Unreached || b == timetable.Unreached {
		return timetable.Unreached
	}
	v := uint32(a) + uint32(b)
	if v > uint32(timetable.ThreeDays) {
		return timetable.Unreached
	}
	return timetable.RTime(v)
}

func subRTime(a, b timetable.RTime) timetable.RTime {
	if a == timetable.Unreached || b == timetable.Unreached || b > a {
		return timetable.Unreached
	}
	return a - b
}
