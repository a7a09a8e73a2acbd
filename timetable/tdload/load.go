// Package tdload reads the v3 binary timetable format (spec §6) into a
// *timetable.Timetable. It is a pure []byte -> struct transform: the
// caller decides how the bytes got there (heap-loaded via os.ReadFile
// or mmap-ed), keeping this package agnostic to the I/O strategy, per
// spec §1's framing of file I/O as an external collaborator.
package tdload

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/nrrrt/raptor/timetable"
)

var magic = [8]byte{'T', 'T', 'A', 'B', 'L', 'E', 'V', '3'}

// Section indices into the header's 25 n_*/loc_* slots. Only the
// sections this loader reads are named; the remaining slots are
// reserved for sections original_source/ carries (e.g. agency/platform
// string tables beyond what's wired here) and are not read.
const (
	secStops = iota
	secJourneyPatterns
	secVehicleJourneys
	secStopTimes
	secJPPoints
	secJPPointAttrs
	secStopRoutes
	secTransferTargets
	secTransferDistances
	secStopIDs
	secRouteIDs
	secAgencyIDs
	secAgencyNames
	secAgencyURLs
	secHeadsigns
	secLineCodes
	secProductCategories
	secPlatformCodes
	secStopNames
	numSections = 25
)

const headerFixedLen = 8 + 8 + 4 // magic + calendar_start_time + dst_active
const headerLen = headerFixedLen + numSections*4 + numSections*4

// Load parses a v3 timetable image. Returns timetable.Incoherent on any
// structural problem (spec §7 TimetableIncoherent); callers should treat
// a non-nil error as fatal at load time.
func Load(buf []byte) (*timetable.Timetable, error) {
	if len(buf) < headerLen {
		return nil, timetable.Incoherent(errors.New("buffer shorter than v3 header"))
	}
	var gotMagic [8]byte
	copy(gotMagic[:], buf[:8])
	if gotMagic != magic {
		return nil, timetable.Incoherent(errors.Errorf("bad magic: %q", gotMagic))
	}

	off := 8
	calendarStart := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	dstActive := binary.LittleEndian.Uint32(buf[off:])
	off += 4

	var counts, offsets [numSections]uint32
	for i := 0; i < numSections; i++ {
		counts[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	for i := 0; i < numSections; i++ {
		offsets[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}

	tt := &timetable.Timetable{CalendarStartTime: calendarStart, DSTActive: dstActive}

	r := reader{buf: buf, counts: counts, offsets: offsets}

	var err error
	if tt.Stops, err = r.stops(secStops); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.JourneyPatterns, err = r.journeyPatterns(secJourneyPatterns); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.VehicleJourneys, err = r.vehicleJourneys(secVehicleJourneys); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.StopTimes, err = r.stopTimes(secStopTimes); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.JPPoints, err = r.u32s(secJPPoints); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.JPPointAttrs, err = r.jpPointAttrs(secJPPointAttrs); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.StopRoutes, err = r.u32s(secStopRoutes); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.TransferTargets, err = r.u32s(secTransferTargets); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.TransferDistances, err = r.u8s(secTransferDistances); err != nil {
		return nil, timetable.Incoherent(err)
	}

	if tt.StopIDs, err = r.strings(secStopIDs); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.RouteIDs, err = r.strings(secRouteIDs); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.AgencyIDs, err = r.strings(secAgencyIDs); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.AgencyNames, err = r.strings(secAgencyNames); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.AgencyURLs, err = r.strings(secAgencyURLs); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.Headsigns, err = r.strings(secHeadsigns); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.LineCodes, err = r.strings(secLineCodes); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.ProductCategories, err = r.strings(secProductCategories); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.PlatformCodes, err = r.strings(secPlatformCodes); err != nil {
		return nil, timetable.Incoherent(err)
	}
	if tt.StopNames, err = r.strings(secStopNames); err != nil {
		return nil, timetable.Incoherent(err)
	}

	if err := tt.Validate(); err != nil {
		return nil, timetable.Incoherent(err)
	}
	return tt, nil
}

type reader struct {
	buf     []byte
	counts  [numSections]uint32
	offsets [numSections]uint32
}

func (r reader) section(idx int) ([]byte, error) {
	start := int(r.offsets[idx])
	if start > len(r.buf) {
		return nil, errors.Errorf("section %d offset %d out of range", idx, start)
	}
	return r.buf[start:], nil
}

func (r reader) stops(idx int) ([]timetable.Stop, error) {
	b, err := r.section(idx)
	if err != nil {
		return nil, err
	}
	n := int(r.counts[idx]) + 1 // + sentinel
	out := make([]timetable.Stop, n)
	const recLen = 4 + 4 + 8 + 8 + 4
	for i := 0; i < n; i++ {
		rec := b[i*recLen:]
		out[i] = timetable.Stop{
			StopRoutesOffset: binary.LittleEndian.Uint32(rec[0:]),
			TransfersOffset:  binary.LittleEndian.Uint32(rec[4:]),
			Lat:              math.Float64frombits(binary.LittleEndian.Uint64(rec[8:])),
			Lon:              math.Float64frombits(binary.LittleEndian.Uint64(rec[16:])),
			NameIndex:        binary.LittleEndian.Uint32(rec[24:]),
		}
	}
	return out, nil
}

func (r reader) journeyPatterns(idx int) ([]timetable.JourneyPattern, error) {
	b, err := r.section(idx)
	if err != nil {
		return nil, err
	}
	n := int(r.counts[idx]) + 1
	out := make([]timetable.JourneyPattern, n)
	const recLen = 4*10 + 2*2
	for i := 0; i < n; i++ {
		rec := b[i*recLen:]
		out[i] = timetable.JourneyPattern{
			JPPointsOffset:       binary.LittleEndian.Uint32(rec[0:]),
			StopTimesOffset:      binary.LittleEndian.Uint32(rec[4:]),
			VJOffset:             binary.LittleEndian.Uint32(rec[8:]),
			NStops:               binary.LittleEndian.Uint32(rec[12:]),
			NVJs:                 binary.LittleEndian.Uint32(rec[16:]),
			Attributes:           timetable.Attributes(binary.LittleEndian.Uint32(rec[20:])),
			MinTime:              timetable.RTime(binary.LittleEndian.Uint16(rec[24:])),
			MaxTime:              timetable.RTime(binary.LittleEndian.Uint16(rec[26:])),
			HeadsignIndex:        binary.LittleEndian.Uint32(rec[28:]),
			AgencyIndex:          binary.LittleEndian.Uint32(rec[32:]),
			LineCodeIndex:        binary.LittleEndian.Uint32(rec[36:]),
			ProductCategoryIndex: binary.LittleEndian.Uint32(rec[40:]),
		}
	}
	return out, nil
}

func (r reader) vehicleJourneys(idx int) ([]timetable.VehicleJourney, error) {
	b, err := r.section(idx)
	if err != nil {
		return nil, err
	}
	n := int(r.counts[idx]) + 1
	out := make([]timetable.VehicleJourney, n)
	const recLen = 4 + 2 + 4 + 4
	for i := 0; i < n; i++ {
		rec := b[i*recLen:]
		out[i] = timetable.VehicleJourney{
			StopTimesOffset: binary.LittleEndian.Uint32(rec[0:]),
			BeginTime:       timetable.RTime(binary.LittleEndian.Uint16(rec[4:])),
			VJAttributes:    timetable.Attributes(binary.LittleEndian.Uint32(rec[6:])),
			ActiveMask:      binary.LittleEndian.Uint32(rec[10:]),
		}
	}
	return out, nil
}

func (r reader) stopTimes(idx int) ([]timetable.StopTime, error) {
	b, err := r.section(idx)
	if err != nil {
		return nil, err
	}
	n := int(r.counts[idx])
	out := make([]timetable.StopTime, n)
	const recLen = 2 + 2
	for i := 0; i < n; i++ {
		rec := b[i*recLen:]
		out[i] = timetable.StopTime{
			Arrival:   timetable.RTime(binary.LittleEndian.Uint16(rec[0:])),
			Departure: timetable.RTime(binary.LittleEndian.Uint16(rec[2:])),
		}
	}
	return out, nil
}

func (r reader) u32s(idx int) ([]uint32, error) {
	b, err := r.section(idx)
	if err != nil {
		return nil, err
	}
	n := int(r.counts[idx])
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out, nil
}

func (r reader) u8s(idx int) ([]uint8, error) {
	b, err := r.section(idx)
	if err != nil {
		return nil, err
	}
	n := int(r.counts[idx])
	out := make([]uint8, n)
	copy(out, b[:n])
	return out, nil
}

func (r reader) jpPointAttrs(idx int) ([]timetable.JPPointAttr, error) {
	raw, err := r.u8s(idx)
	if err != nil {
		return nil, err
	}
	out := make([]timetable.JPPointAttr, len(raw))
	for i, v := range raw {
		out[i] = timetable.JPPointAttr(v)
	}
	return out, nil
}

// strings reads a string table: u32 record width, followed by
// count records of that width, each NUL-padded (spec §6).
func (r reader) strings(idx int) ([]string, error) {
	b, err := r.section(idx)
	if err != nil {
		return nil, err
	}
	n := int(r.counts[idx])
	if n == 0 {
		return nil, nil
	}
	width := int(binary.LittleEndian.Uint32(b))
	b = b[4:]
	out := make([]string, n)
	for i := 0; i < n; i++ {
		rec := b[i*width : i*width+width]
		end := 0
		for end < len(rec) && rec[end] != 0 {
			end++
		}
		out[i] = string(rec[:end])
	}
	return out, nil
}
