// Package timetable holds the compact, read-only, index-addressed
// timetable the router scans: stops, journey patterns (JPs), vehicle
// journeys (VJs), stop-times, transfers, calendars and string
// side-tables. All entities are referred to by dense uint32 indices;
// variable-length lists are offset arrays into flat backing slices.
package timetable

import "math"

// None is the sentinel for "no such index" (spec §3, §6).
const None = math.MaxUint32

// RTime is a 4-second time unit, 16 bits wide, relative to a
// ServiceDay's midnight (spec §3, GLOSSARY).
type RTime uint16

const (
	// Unreached marks a RouterState/best_time slot that has not been
	// written this query.
	Unreached RTime = 0xFFFF
	// OneDay is the number of rtime units in 24 hours (24*60*60/4).
	OneDay RTime = 21600
	// TwoDays / ThreeDays gate the overnight search window and
	// overflow detection (spec §3, §4.3.1 step 4 on-board-alighting).
	TwoDays   RTime = OneDay * 2
	ThreeDays RTime = OneDay * 3
)

// Attributes is a bitmask of travel modes / trip attributes, tested
// against a request's mode/trip_attributes filters (spec §3, §4.3.1,
// §9 "Polymorphism").
type Attributes uint32

// Stop is a fixed-offset record; variable-length adjacency is read via
// the offset into the next stop's offset (spec §3 Stop row).
type Stop struct {
	StopRoutesOffset uint32 // into the JP-at-stop list
	TransfersOffset  uint32 // into the transfer list
	Lat, Lon         float64
	NameIndex        uint32
}

// JourneyPattern is a sequence of stops served identically by a set of
// VJs ("route" in RAPTOR terminology). Spec §3 JourneyPattern row.
type JourneyPattern struct {
	JPPointsOffset  uint32 // into stops-for-jp
	StopTimesOffset uint32 // into the flat StopTime array
	VJOffset        uint32 // into the flat VehicleJourney array
	NStops          uint32
	NVJs             uint32
	Attributes      Attributes
	MinTime         RTime
	MaxTime         RTime
	HeadsignIndex   uint32
	AgencyIndex     uint32
	LineCodeIndex        uint32 // FULL: short line code, e.g. "U6"
	ProductCategoryIndex uint32 // FULL: e.g. "subway"
}

// VehicleJourney is one scheduled run along a JourneyPattern.
type VehicleJourney struct {
	StopTimesOffset uint32 // offset into the JP's stop-times, this VJ's row
	BeginTime       RTime  // rtime from schedule midnight
	VJAttributes    Attributes
	ActiveMask      uint32 // calendar bitset: bit d set iff VJ runs on day d
}

// StopTime holds arrival/departure relative to VJ.BeginTime.
type StopTime struct {
	Arrival   RTime
	Departure RTime
}

// JPPointAttr flags boarding/alighting allowance at a JP point
// (endpoints are validated to be boarding-only / alighting-only).
type JPPointAttr uint8

const (
	AttrBoarding JPPointAttr = 1 << iota
	AttrAlighting
)

// Transfer is one entry in a stop's foot-transfer list.
type Transfer struct {
	TargetStop uint32
	DistMeters uint8 // stored in 16-meter units, see DistToMeters
}

// DistToMeters converts a stored 16-meter unit to meters.
func (t Transfer) DistToMeters() float64 { return float64(t.DistMeters) * 16 }

// WALK is the walk-leg sentinel value for a back_jp field (spec §4.3.3,
// §6 Sentinels). router.RouterState does not use it: it records walk
// hops in its separate WalkTime/WalkFrom fields.
const WALK = math.MaxUint32 - 1

// Onboard is the sentinel placed in a request's From field when seeded
// from a running VJ (spec §6 Sentinels).
const Onboard = math.MaxUint32 - 2

// Timetable is the read-only set of flat arrays the router scans.
// Owned by the loader; borrowed read-only by Router (spec §3
// Ownership). The sentinel element one past the last Stop/JP/VJ index
// terminates adjacency ranges per §6.
type Timetable struct {
	CalendarStartTime uint64 // epoch seconds
	DSTActive         uint32 // calendar mask: days observing DST

	Stops            []Stop
	JourneyPatterns  []JourneyPattern
	VehicleJourneys  []VehicleJourney
	StopTimes        []StopTime
	JPPoints         []uint32      // JP-points-offset section: global stop index per (jp, point)
	JPPointAttrs     []JPPointAttr // parallel to JPPoints
	StopRoutes       []uint32      // stop->JP adjacency, ranged by Stop.StopRoutesOffset
	TransferTargets  []uint32      // parallel arrays per §6
	TransferDistances []uint8

	// String side-tables (spec §3 FULL additions).
	StopIDs           []string
	RouteIDs          []string
	AgencyIDs         []string
	AgencyNames       []string
	AgencyURLs        []string
	Headsigns         []string
	LineCodes         []string
	ProductCategories []string
	PlatformCodes     []string
	StopNames         []string

	// Realtime overlay attachment point (spec §4.4, §5). Nil until an
	// overlay is installed via SetOverlay.
	RT RealtimeView
}

// RealtimeView is the read surface the Timetable exposes to Stoptime
// (spec §4.1 step 1). Implemented by *realtime.Overlay; kept as an
// interface here so the timetable package never imports realtime
// (avoiding a dependency cycle, since realtime necessarily imports
// timetable).
type RealtimeView interface {
	// StopTimesFor returns the absolute-rtime overlay stop-times for
	// vj, and true if an overlay exists for it.
	StopTimesFor(vj uint32) ([]StopTime, bool)
	// JPsAtStop returns forked JPs whose stop sequence touches stop,
	// for realtime-aware stop->JP adjacency.
	JPsAtStop(stop uint32) []uint32
}

// SetOverlay installs (or clears, with nil) the realtime overlay.
func (tt *Timetable) SetOverlay(rt RealtimeView) { tt.RT = rt }
