package router

import (
	"github.com/nrrrt/raptor/bitset"
	"github.com/nrrrt/raptor/timetable"
)

// MaxRounds is R from spec §4.3 Setup ("typically 8").
const MaxRounds = 8

// RouterState is one (round, stop) scratch cell (spec §3 RouterState[r,s]).
type RouterState struct {
	Time        timetable.RTime
	WalkTime    timetable.RTime
	WalkFrom    uint32
	RideFrom    uint32
	BackJP      uint32
	BackVJ      uint32
	BoardTime   timetable.RTime
	BackJPPoint uint32
	JPPoint     uint32
}

func freshState() RouterState {
	return RouterState{
		Time:        timetable.Unreached,
		WalkTime:    timetable.Unreached,
		WalkFrom:    timetable.None,
		RideFrom:    timetable.None,
		BackJP:      timetable.None,
		BackVJ:      timetable.None,
		BoardTime:   timetable.Unreached,
		BackJPPoint: timetable.None,
		JPPoint:     timetable.None,
	}
}

// scratch is the per-Router, reused-across-queries allocation (spec
// §4.3 Setup: "Allocation once, reused across queries").
type scratch struct {
	bestTime []timetable.RTime
	states   [][]RouterState // [round][stop]

	updatedStops  *bitset.Bitset
	updatedRoutes *bitset.Bitset
}

func newScratch(nStops, nJPs uint32) *scratch {
	s := &scratch{
		bestTime:      make([]timetable.RTime, nStops),
		states:        make([][]RouterState, MaxRounds),
		updatedStops:  bitset.New(nStops),
		updatedRoutes: bitset.New(nJPs),
	}
	for r := 0; r < MaxRounds; r++ {
		s.states[r] = make([]RouterState, nStops)
	}
	return s
}

// reset reinitializes the scratch for a new query (spec §4.3 Reset).
func (s *scratch) reset() {
	for i := range s.bestTime {
		s.bestTime[i] = timetable.Unreached
	}
	for r := range s.states {
		row := s.states[r]
		for i := range row {
			row[i] = freshState()
		}
	}
	s.updatedStops.Clear()
	s.updatedRoutes.Clear()
}
