package router

import (
	"github.com/rs/zerolog/log"

	"github.com/nrrrt/raptor/bitset"
	"github.com/nrrrt/raptor/timetable"
)

// applyTransfers implements spec §4.3.2 apply_transfers(r): self-transfers
// (confirming the current-best state is walkable) and foot transfers
// over the static transfer graph, flagging JPs for the next round scan.
func (r *Router) applyTransfers(req *Request, sc *scratch, round int) {
	sc.updatedRoutes.Clear()

	for s := sc.updatedStops.NextSet(0); s != bitset.None; s = sc.updatedStops.NextSet(s + 1) {
		tFrom := sc.states[round][s].Time
		if tFrom == timetable.Unreached {
			log.Debug().Uint32("stop", s).Msg("updated stop with unreached time, skipping")
			continue
		}

		if tFrom == sc.bestTime[s] {
			sc.states[round][s].WalkTime = tFrom
			sc.states[round][s].WalkFrom = s
			r.flagJPsForStop(req, sc, s)
		}

		for _, tr := range r.tt.TransfersForStop(s) {
			durSecs := tr.DistToMeters()/req.WalkSpeed + req.WalkSlack
			dur := secToRTime(durSecs)
			if dur == timetable.Unreached {
				continue
			}
			var tTo timetable.RTime
			if req.ArriveBy {
				tTo = subRTime(tFrom, dur)
			} else {
				tTo = addRTime(tFrom, dur)
			}
			if tTo == timetable.Unreached {
				continue
			}

			improves := sc.bestTime[tr.TargetStop] == timetable.Unreached
			if !improves {
				if req.ArriveBy {
					improves = tTo > sc.bestTime[tr.TargetStop]
				} else {
					improves = tTo < sc.bestTime[tr.TargetStop]
				}
			}
			if !improves {
				continue
			}

			sc.states[round][tr.TargetStop].WalkTime = tTo
			sc.states[round][tr.TargetStop].WalkFrom = s
			sc.bestTime[tr.TargetStop] = tTo
			r.flagJPsForStop(req, sc, tr.TargetStop)
		}
	}

	sc.updatedStops.Clear()
}

// seedTransfers relaxes foot transfers over the stops seeded directly
// onto the origin (spec §4.3 "Initial transfer application": extend
// the seeded set by the static transfer graph before round 0 scans,
// since the seeded stops themselves carry a walk-time but no ride
// state yet to drive the ordinary apply_transfers(r) pass off of).
func (r *Router) seedTransfers(req *Request, sc *scratch) {
	for s := sc.updatedStops.NextSet(0); s != bitset.None; s = sc.updatedStops.NextSet(s + 1) {
		tFrom := sc.states[1][s].WalkTime
		if tFrom == timetable.Unreached {
			continue
		}
		r.flagJPsForStop(req, sc, s)

		for _, tr := range r.tt.TransfersForStop(s) {
			durSecs := tr.DistToMeters()/req.WalkSpeed + req.WalkSlack
			dur := secToRTime(durSecs)
			if dur == timetable.Unreached {
				continue
			}
			var tTo timetable.RTime
			if req.ArriveBy {
				tTo = subRTime(tFrom, dur)
			} else {
				tTo = addRTime(tFrom, dur)
			}
			if tTo == timetable.Unreached {
				continue
			}

			improves := sc.bestTime[tr.TargetStop] == timetable.Unreached
			if !improves {
				if req.ArriveBy {
					improves = tTo > sc.bestTime[tr.TargetStop]
				} else {
					improves = tTo < sc.bestTime[tr.TargetStop]
				}
			}
			if !improves {
				continue
			}

			sc.states[1][tr.TargetStop].WalkTime = tTo
			sc.states[1][tr.TargetStop].WalkFrom = s
			sc.bestTime[tr.TargetStop] = tTo
			r.flagJPsForStop(req, sc, tr.TargetStop)
		}
	}

	sc.updatedStops.Clear()
}

// flagJPsForStop flags every JP serving stop (static adjacency plus
// any realtime-forked JPs), then unflags banned routes.
func (r *Router) flagJPsForStop(req *Request, sc *scratch, stop uint32) {
	for _, jp := range r.tt.JPsForStop(stop) {
		sc.updatedRoutes.Set(jp)
	}
	if r.tt.RT != nil {
		for _, jp := range r.tt.RT.JPsAtStop(stop) {
			sc.updatedRoutes.Set(jp)
		}
	}
	for _, jp := range req.BannedRoutes {
		sc.updatedRoutes.Unset(jp)
	}
}
