package router

import "github.com/nrrrt/raptor/timetable"

// reconstruct implements spec §4.3.3 Result reconstruction: walk a
// terminated round's state chain back to origin, alternating ride legs
// (Time/BackJP/BackVJ/RideFrom/BoardTime) with the walk leg that fed
// the boarding stop (WalkTime/WalkFrom layered onto the same cell).
// The spec describes one cell with a back_jp == WALK sentinel for
// walk-only entries; here the two halves live side by side in
// RouterState so a stop that both alights a ride and self-confirms by
// transfer in the same round keeps both facts instead of one
// overwriting the other (see DESIGN.md).
func (r *Router) reconstruct(req *Request, sc *scratch, round int, origin, target uint32) Itinerary {
	var legs []Leg
	s := target
	rd := round

	for s != origin {
		st := sc.states[rd][s]

		if st.WalkFrom != timetable.None && st.WalkFrom != s {
			arrive := st.WalkTime
			depart := arrive
			if predT := sc.states[rd][st.WalkFrom].Time; predT != timetable.Unreached {
				depart = predT
			}
			legs = append(legs, Leg{
				IsWalk:     true,
				FromStop:   st.WalkFrom,
				ToStop:     s,
				DepartTime: depart,
				ArriveTime: arrive,
			})
			s = st.WalkFrom
			continue
		}

		if st.BackJP == timetable.None {
			// Nothing further to unwind: a seeded stop with no ride
			// and no recorded transfer hop into it. Stop rather than
			// loop forever on state that shouldn't occur.
			break
		}

		legs = append(legs, Leg{
			IsWalk:     false,
			FromStop:   st.RideFrom,
			ToStop:     s,
			DepartTime: st.BoardTime,
			ArriveTime: st.Time,
			JP:         st.BackJP,
			VJOffset:   st.BackVJ,
		})

		s = st.RideFrom
		// Round 0's boarding reads its predecessor from the states[1]
		// scratch row (see round.go's "last" trick), so unwinding a
		// round-0 ride steps back to row 1, not row -1.
		if rd == 0 {
			rd = 1
		} else {
			rd--
		}
	}

	for i, j := 0, len(legs)-1; i < j; i, j = i+1, j-1 {
		legs[i], legs[j] = legs[j], legs[i]
	}
	return Itinerary{Rounds: round, Legs: legs}
}

// directWalkItinerary reports the zero-ride solution when target is
// reachable straight from a seeded origin stop by foot, with no
// boarding at all; it carries Rounds 0, like the one-ride itineraries
// of round 0. Returns nil if target isn't walk-reachable from the seed
// set, and an itinerary with no legs if target is itself one of the
// seeded stops.
func (r *Router) directWalkItinerary(sc *scratch, target uint32) *Itinerary {
	if target == timetable.None {
		return nil
	}
	st := sc.states[1][target]
	if st.WalkFrom == timetable.None {
		return nil
	}
	if st.WalkFrom == target {
		return &Itinerary{Rounds: 0}
	}
	depart := st.WalkTime
	if predT := sc.states[1][st.WalkFrom].WalkTime; predT != timetable.Unreached {
		depart = predT
	}
	return &Itinerary{
		Rounds: 0,
		Legs: []Leg{{
			IsWalk:     true,
			FromStop:   st.WalkFrom,
			ToStop:     target,
			DepartTime: depart,
			ArriveTime: st.WalkTime,
		}},
	}
}
