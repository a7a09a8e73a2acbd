package router

import (
	"github.com/nrrrt/raptor/bitset"
	"github.com/nrrrt/raptor/timetable"
)

// scanRound implements spec §4.3.1 round(r): scan every JP flagged in
// updated_routes, board/re-board as needed, and write improving
// on-board-alighting arrivals into states[r].
func (r *Router) scanRound(req *Request, sc *scratch, days [3]timetable.ServiceDay, round int, target uint32) {
	// Round 1's scratch row doubles as round 0's predecessor: origin
	// seeding (and the initial transfer relaxation) writes walk-times
	// into states[1], so round 0 reads them from there. From round 1
	// on, each round reads the previous round's own walk-times.
	last := round - 1
	if round == 0 {
		last = 1
	}

	for jp := sc.updatedRoutes.NextSet(0); jp != bitset.None; jp = sc.updatedRoutes.NextSet(jp + 1) {
		if req.Mode != 0 && req.Mode&r.tt.JourneyPatterns[jp].Attributes == 0 {
			continue
		}
		if req.isBannedRoute(jp) {
			continue
		}
		r.scanJP(req, sc, days, round, last, jp, target)
	}

	for _, s := range req.BannedStops {
		sc.updatedStops.Unset(s)
	}
}

func (r *Router) scanJP(req *Request, sc *scratch, days [3]timetable.ServiceDay, round, last int, jp uint32, target uint32) {
	stops := r.tt.StopsForJP(jp)
	attrs := r.tt.JPPointAttrsForJP(jp)

	var vj uint32 = timetable.None
	var boardStop, boardJPPoint uint32
	var boardTime timetable.RTime
	var boardServiceday timetable.ServiceDay

	for it := newPointIterator(len(stops), req.ArriveBy); it.HasNext(); {
		pt := it.Next()
		s := stops[pt]

		if req.isBannedHard(s) {
			vj = timetable.None
			continue
		}

		prevTime := sc.states[last][s].WalkTime

		attemptBoard := false
		switch {
		case prevTime == timetable.Unreached:
			attemptBoard = false
		case vj == timetable.None || s == req.Via:
			attemptBoard = true
		case req.Via != timetable.None && boardStop == req.Via:
			attemptBoard = false
		default:
			cur := r.tt.Stoptime(jp, vj, pt, !req.ArriveBy, boardServiceday)
			if req.ArriveBy {
				attemptBoard = cur != timetable.Unreached && prevTime > cur
			} else {
				attemptBoard = cur != timetable.Unreached && prevTime < cur
			}
		}

		// Arrive-by walks JP points in reverse schedule order, so the
		// point it first encounters and wants to "board" in the
		// reverse search is physically where a forward rider would
		// alight, and vice versa: the boarding/alighting attribute
		// check flips with the scan direction.
		boardAttr, alightAttr := timetable.AttrBoarding, timetable.AttrAlighting
		if req.ArriveBy {
			boardAttr, alightAttr = alightAttr, boardAttr
		}

		if attemptBoard && attrs[pt]&boardAttr != 0 {
			nvj, nTime, nServiceday, ok := r.attemptBoard(req, days, jp, pt, prevTime)
			if ok {
				vj, boardTime, boardStop, boardJPPoint, boardServiceday = nvj, nTime, s, pt, nServiceday
				continue
			}
		}

		if vj == timetable.None || attrs[pt]&alightAttr == 0 {
			continue
		}

		t := r.tt.Stoptime(jp, vj, pt, !req.ArriveBy, boardServiceday)
		if t == timetable.Unreached {
			continue
		}

		if target != timetable.None && sc.bestTime[target] != timetable.Unreached {
			if req.ArriveBy {
				if t <= sc.bestTime[target] {
					continue
				}
			} else if t >= sc.bestTime[target] {
				continue
			}
		}
		if req.HasTimeCutoff() {
			if req.ArriveBy {
				if t < req.TimeCutoff {
					continue
				}
			} else if t > req.TimeCutoff {
				continue
			}
		}
		if t > timetable.ThreeDays {
			continue
		}

		improves := sc.bestTime[s] == timetable.Unreached
		if !improves {
			if req.ArriveBy {
				improves = t > sc.bestTime[s]
			} else {
				improves = t < sc.bestTime[s]
			}
		}
		if !improves {
			continue
		}

		sc.states[round][s] = RouterState{
			Time:        t,
			WalkTime:    timetable.Unreached,
			WalkFrom:    timetable.None,
			RideFrom:    boardStop,
			BackJP:      jp,
			BackVJ:      vj,
			BoardTime:   boardTime,
			BackJPPoint: boardJPPoint,
			JPPoint:     pt,
		}
		sc.bestTime[s] = t
		sc.updatedStops.Set(s)
	}
}

// attemptBoard scans the three servicedays (in request-direction
// order) looking for the best VJ at (jp, pt) reachable from prevTime
// (spec §4.3.1 "Board attempt").
func (r *Router) attemptBoard(req *Request, days [3]timetable.ServiceDay, jp uint32, pt uint32, prevTime timetable.RTime) (vj uint32, boardTime timetable.RTime, sd timetable.ServiceDay, ok bool) {
	jpRec := &r.tt.JourneyPatterns[jp]
	overlap := jpRec.MinTime < jpRec.MaxTime-timetable.OneDay
	var best timetable.RTime = timetable.Unreached
	var bestVJ uint32 = timetable.None
	var bestSD timetable.ServiceDay

	for _, day := range days {
		windowLo := day.Midnight + jpRec.MinTime
		windowHi := day.Midnight + jpRec.MaxTime
		if prevTime < windowLo || prevTime > windowHi {
			continue
		}

		found := false
		for _, cand := range r.tt.VJsForJP(jp) {
			if req.isBannedVJ(cand) {
				continue
			}
			vjRec := &r.tt.VehicleJourneys[cand]
			if day.Mask&vjRec.ActiveMask == 0 {
				continue
			}
			if req.TripAttributes != 0 && vjRec.VJAttributes&req.TripAttributes != req.TripAttributes {
				continue
			}
			t := r.tt.Stoptime(jp, cand, pt, req.ArriveBy, day)
			if t == timetable.Unreached {
				continue
			}
			if req.ArriveBy {
				if t > prevTime {
					continue
				}
				if bestVJ == timetable.None || t > best {
					best, bestVJ, bestSD = t, cand, day
					found = true
				}
			} else {
				if t < prevTime {
					continue
				}
				if bestVJ == timetable.None || t < best {
					best, bestVJ, bestSD = t, cand, day
					found = true
				}
			}
		}
		if found && !overlap {
			break
		}
	}

	if bestVJ == timetable.None {
		return timetable.None, timetable.Unreached, timetable.ServiceDay{}, false
	}
	return bestVJ, best, bestSD, true
}
