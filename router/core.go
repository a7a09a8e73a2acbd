// Package router implements the RAPTOR round-based transit scan over a
// timetable.Timetable: the round scan (round.go), transfer relaxation
// (transfers.go), and result reconstruction (reconstruct.go). Grounded
// on original_source/router.c's control flow, adapted from its
// array-of-structs C layout to Go slices, and on
// _examples/LiamMartens-go-raptor/mod.go's round-bookkeeping shape,
// adapted from that file's generic map-based model to this package's
// dense-index model (see DESIGN.md).
package router

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nrrrt/raptor/spatial"
	"github.com/nrrrt/raptor/timetable"
)

// Clock lets tests and callers control "now" explicitly rather than
// relying on ambient time.Now() (spec §9 Design Notes, "Global state").
type Clock func() time.Time

// Router holds the per-instance scratch and read-only references
// needed to answer queries. One Router per worker (spec §5).
type Router struct {
	tt      *timetable.Timetable
	grid    *spatial.HashGrid
	clock   Clock
	scratch *scratch
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithClock overrides the default time.Now-based Clock.
func WithClock(c Clock) Option { return func(r *Router) { r.clock = c } }

// WithSpatialIndex attaches a HashGrid for coordinate-based
// origin/destination resolution (spec §4.2, §4.3).
func WithSpatialIndex(g *spatial.HashGrid) Option { return func(r *Router) { r.grid = g } }

// New allocates a Router over tt (spec §4.3 Setup: allocation happens
// once here, reused across queries via Route).
func New(tt *timetable.Timetable, opts ...Option) *Router {
	r := &Router{
		tt:      tt,
		clock:   time.Now,
		scratch: newScratch(uint32(len(tt.Stops)), uint32(len(tt.JourneyPatterns))),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Itinerary is one Pareto-optimal result, produced per terminated round
// (spec §4.3.3).
type Itinerary struct {
	Rounds int
	Legs   []Leg
}

// Leg is either a ride (IsWalk false) or a walk (IsWalk true).
type Leg struct {
	IsWalk      bool
	FromStop    uint32
	ToStop      uint32
	DepartTime  timetable.RTime
	ArriveTime  timetable.RTime
	JP          uint32
	VJOffset    uint32
}

// Result is what Route returns: the Pareto front over (arrival time,
// rounds) (spec §8 P5).
type Result struct {
	Itineraries []Itinerary
}

// Route answers one query (spec §4.3 Main loop).
func (r *Router) Route(req *Request) (*Result, error) {
	if req.OnboardVJ != timetable.None && req.ArriveBy {
		return nil, invalidRequest("onboard mode is incompatible with arrive_by")
	}

	r.scratch.reset()
	sc := r.scratch

	nowEpoch := req.NowEpoch
	if nowEpoch == 0 {
		nowEpoch = uint64(r.clock().Unix())
	}
	rtMask := r.tt.RealtimeDayMask(nowEpoch)
	days := r.tt.ServiceDaySetup(nowEpoch, req.DayMask|rtMask)
	if req.ArriveBy {
		days[0], days[2] = days[2], days[0]
	}

	origin, err := r.resolveOrigin(req, sc, days)
	if err != nil {
		return nil, err
	}
	target, err := r.resolveTarget(req, sc)
	if err != nil {
		return nil, err
	}

	var itineraries []Itinerary

	if req.OnboardVJ == timetable.None {
		r.seedTransfers(req, sc)
		if it := r.directWalkItinerary(sc, target); it != nil && len(it.Legs) > 0 {
			itineraries = append(itineraries, *it)
		}
	}

	maxR := req.MaxTransfers + 1
	if maxR > MaxRounds {
		maxR = MaxRounds
	}

	for round := 0; round < maxR; round++ {
		r.scanRound(req, sc, days, round, target)
		r.applyTransfers(req, sc, round)
		if round == 0 {
			for i := range sc.states[1] {
				sc.states[1][i].WalkTime = timetable.Unreached
			}
		}
		if target != timetable.None {
			st := sc.states[round][target]
			if st.Time != timetable.Unreached || st.WalkTime != timetable.Unreached {
				itineraries = append(itineraries, r.reconstruct(req, sc, round, origin, target))
			}
		}
	}

	log.Debug().Int("itineraries", len(itineraries)).Msg("route computed")
	return &Result{Itineraries: itineraries}, nil
}
