package tdload

import (
	"encoding/binary"
	"testing"

	"github.com/nrrrt/raptor/timetable"
)

// encodeJP writes one 44-byte JourneyPattern record (10 uint32 fields
// followed by 2 uint16 fields) at the given offset into buf.
func encodeJP(buf []byte, off int, jp timetable.JourneyPattern) {
	binary.LittleEndian.PutUint32(buf[off+0:], jp.JPPointsOffset)
	binary.LittleEndian.PutUint32(buf[off+4:], jp.StopTimesOffset)
	binary.LittleEndian.PutUint32(buf[off+8:], jp.VJOffset)
	binary.LittleEndian.PutUint32(buf[off+12:], jp.NStops)
	binary.LittleEndian.PutUint32(buf[off+16:], jp.NVJs)
	binary.LittleEndian.PutUint32(buf[off+20:], uint32(jp.Attributes))
	binary.LittleEndian.PutUint16(buf[off+24:], uint16(jp.MinTime))
	binary.LittleEndian.PutUint16(buf[off+26:], uint16(jp.MaxTime))
	binary.LittleEndian.PutUint32(buf[off+28:], jp.HeadsignIndex)
	binary.LittleEndian.PutUint32(buf[off+32:], jp.AgencyIndex)
	binary.LittleEndian.PutUint32(buf[off+36:], jp.LineCodeIndex)
	binary.LittleEndian.PutUint32(buf[off+40:], jp.ProductCategoryIndex)
}

// TestJourneyPatternsRecordStride guards against the record width
// regressing to 40 bytes (9 uint32 + 2 uint16): with the wrong stride
// every record past index 0 is read out of alignment, so a second,
// distinctly-valued JourneyPattern would silently decode as garbage.
func TestJourneyPatternsRecordStride(t *testing.T) {
	const recLen = 44
	buf := make([]byte, recLen*2)
	encodeJP(buf, 0*recLen, timetable.JourneyPattern{
		JPPointsOffset: 1, StopTimesOffset: 2, VJOffset: 3, NStops: 4, NVJs: 5,
		Attributes: 6, MinTime: 7, MaxTime: 8,
		HeadsignIndex: 9, AgencyIndex: 10, LineCodeIndex: 11, ProductCategoryIndex: 12,
	})
	encodeJP(buf, 1*recLen, timetable.JourneyPattern{
		JPPointsOffset: 101, StopTimesOffset: 102, VJOffset: 103, NStops: 104, NVJs: 105,
		Attributes: 106, MinTime: 107, MaxTime: 108,
		HeadsignIndex: 109, AgencyIndex: 110, LineCodeIndex: 111, ProductCategoryIndex: 112,
	})

	r := reader{
		buf:     buf,
		counts:  [numSections]uint32{secJourneyPatterns: 1}, // +1 sentinel => n=2
		offsets: [numSections]uint32{secJourneyPatterns: 0},
	}

	got, err := r.journeyPatterns(secJourneyPatterns)
	if err != nil {
		t.Fatalf("journeyPatterns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 journey patterns, got %d", len(got))
	}

	want0 := timetable.JourneyPattern{
		JPPointsOffset: 1, StopTimesOffset: 2, VJOffset: 3, NStops: 4, NVJs: 5,
		Attributes: 6, MinTime: 7, MaxTime: 8,
		HeadsignIndex: 9, AgencyIndex: 10, LineCodeIndex: 11, ProductCategoryIndex: 12,
	}
	if got[0] != want0 {
		t.Fatalf("jp[0]: got %+v, want %+v", got[0], want0)
	}

	want1 := timetable.JourneyPattern{
		JPPointsOffset: 101, StopTimesOffset: 102, VJOffset: 103, NStops: 104, NVJs: 105,
		Attributes: 106, MinTime: 107, MaxTime: 108,
		HeadsignIndex: 109, AgencyIndex: 110, LineCodeIndex: 111, ProductCategoryIndex: 112,
	}
	if got[1] != want1 {
		t.Fatalf("jp[1]: got %+v, want %+v (a wrong record stride bleeds jp[0]'s tail into this record)", got[1], want1)
	}
}
