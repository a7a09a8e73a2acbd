// Package realtime applies GTFS-realtime schedule-relationship deltas
// on top of a timetable.Timetable: cancellations, in-place delay
// propagation, and forking a new JourneyPattern when a trip's stop
// sequence changes (spec §4.4).
package realtime

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/pkg/errors"
	proto "google.golang.org/protobuf/proto"
)

// StopTimeRelationship classifies one stop-time update (spec §6: "plus
// per-stop {SCHEDULED, SKIPPED, ADDED, NO_DATA}"). The wire enum only
// carries SCHEDULED/SKIPPED/NO_DATA/UNSCHEDULED (see
// gtfs-realtime-bindings' TripUpdate_StopTimeUpdate_ScheduleRelationship,
// mirrored 1:1 below); Added is not a wire value — the overlay classifier
// (overlay.go, grounded on original_source/tdata_realtime_expanded.c's
// tdata_realtime_journey_pattern_type) derives it by comparing an
// update's stop_id against the JP's original stop at that sequence
// position.
type StopTimeRelationship int

const (
	Scheduled StopTimeRelationship = iota
	Skipped
	NoData
	Unscheduled
)

// StopTimeUpdate is one stop-level delta within a TripUpdate.
type StopTimeUpdate struct {
	StopID         string
	StopSequence   uint32
	ArrivalIsSet   bool
	ArrivalTime    time.Time
	ArrivalDelay   time.Duration
	DepartureIsSet bool
	DepartureTime  time.Time
	DepartureDelay time.Duration
	Type           StopTimeRelationship
}

// TripRelationship mirrors TripDescriptor_ScheduleRelationship for the
// two values the overlay honors (spec §4.4, §6).
type TripRelationship int

const (
	TripScheduled TripRelationship = iota
	TripCanceled
	TripAddedOrOther // ADDED/UNSCHEDULED/DUPLICATED: not supported, dropped
)

// TripUpdate is the decoded, protobuf-free shape Overlay.Apply consumes.
type TripUpdate struct {
	TripID       string
	StartDate    string // YYYYMMDD, per GTFS-RT TripDescriptor
	Relationship TripRelationship
	StopTimes    []StopTimeUpdate
}

// DecodeFeed unmarshals a raw GTFS-realtime FeedMessage and extracts
// TripUpdate entities, adapting
// _examples/tidbyt-gtfs/parse/realtime.go's ParseRealtime to this
// package's own TripUpdate shape (see DESIGN.md).
func DecodeFeed(raw []byte) ([]TripUpdate, error) {
	f := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, "unmarshaling gtfs-realtime feed")
	}

	header := f.GetHeader()
	version := header.GetGtfsRealtimeVersion()
	if version != "2.0" && version != "1.0" {
		return nil, errors.Errorf("gtfs-realtime version %q not supported", version)
	}

	var out []TripUpdate
	for _, entity := range f.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		trip := tu.GetTrip()
		if trip == nil || trip.GetTripId() == "" {
			continue
		}

		update := TripUpdate{
			TripID:    trip.GetTripId(),
			StartDate: trip.GetStartDate(),
		}

		switch trip.GetScheduleRelationship() {
		case gtfsproto.TripDescriptor_SCHEDULED:
			update.Relationship = TripScheduled
		case gtfsproto.TripDescriptor_CANCELED:
			update.Relationship = TripCanceled
		default:
			update.Relationship = TripAddedOrOther
		}

		for _, stu := range tu.GetStopTimeUpdate() {
			su, err := decodeStopTimeUpdate(stu)
			if err != nil {
				return nil, errors.Wrapf(err, "trip %s", update.TripID)
			}
			update.StopTimes = append(update.StopTimes, su)
		}

		out = append(out, update)
	}
	return out, nil
}

func decodeStopTimeUpdate(stu *gtfsproto.TripUpdate_StopTimeUpdate) (StopTimeUpdate, error) {
	var su StopTimeUpdate
	su.StopID = stu.GetStopId()
	su.StopSequence = stu.GetStopSequence()

	if stu.Arrival != nil {
		su.ArrivalIsSet = true
		if t := stu.GetArrival().GetTime(); t != 0 {
			su.ArrivalTime = time.Unix(t, 0).UTC()
		}
		su.ArrivalDelay = time.Duration(stu.GetArrival().GetDelay()) * time.Second
	}
	if stu.Departure != nil {
		su.DepartureIsSet = true
		if t := stu.GetDeparture().GetTime(); t != 0 {
			su.DepartureTime = time.Unix(t, 0).UTC()
		}
		su.DepartureDelay = time.Duration(stu.GetDeparture().GetDelay()) * time.Second
	}

	if su.StopID == "" && su.StopSequence == 0 {
		return su, fmt.Errorf("stop_time_update missing stop_id and stop_sequence")
	}

	switch stu.GetScheduleRelationship() {
	case gtfsproto.TripUpdate_StopTimeUpdate_SCHEDULED:
		su.Type = Scheduled
	case gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED:
		su.Type = Skipped
	case gtfsproto.TripUpdate_StopTimeUpdate_NO_DATA:
		su.Type = NoData
	default:
		su.Type = Unscheduled
	}
	return su, nil
}
