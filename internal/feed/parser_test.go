package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

func calendar(events ...string) string {
	return "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//EN\r\n" +
		strings.Join(events, "") + "END:VCALENDAR\r\n"
}

func vevent(props ...string) string {
	return "BEGIN:VEVENT\r\n" + strings.Join(props, "\r\n") + "\r\nEND:VEVENT\r\n"
}

func date(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	require.NoError(t, err)
	return parsed
}

func TestParse_BasicEvents(t *testing.T) {
	raw := calendar(
		vevent(
			"UID:abc@airbnb.com",
			"DTSTART;VALUE=DATE:20250601",
			"DTEND;VALUE=DATE:20250605",
			"SUMMARY:Reserved",
		),
		vevent(
			"UID:def@airbnb.com",
			"DTSTART;VALUE=DATE:20250610",
			"DTEND;VALUE=DATE:20250612",
			"SUMMARY:Reserved",
		),
	)

	result, err := NewParser(models.PlatformAirbnb, "UTC").Parse(raw)
	require.NoError(t, err)
	require.Len(t, result.Events, 2)
	assert.Equal(t, 0, result.Skipped)

	first := result.Events[0]
	assert.Equal(t, "abc@airbnb.com", first.ExternalID)
	assert.True(t, first.CheckIn.Equal(date(t, "2025-06-01")))
	assert.True(t, first.CheckOut.Equal(date(t, "2025-06-05")))
	assert.Equal(t, models.BookingConfirmed, first.Status)
	assert.False(t, first.LowConfidence)
	assert.Contains(t, first.RawBlock, "UID:abc@airbnb.com")
}

func TestParse_MissingVCalendarWrapperIsFatal(t *testing.T) {
	raw := vevent(
		"UID:abc",
		"DTSTART;VALUE=DATE:20250601",
		"DTEND;VALUE=DATE:20250605",
	)

	_, err := NewParser(models.PlatformOther, "UTC").Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParse_EventWithoutUIDIsSkipped(t *testing.T) {
	raw := calendar(
		vevent(
			"DTSTART;VALUE=DATE:20250601",
			"DTEND;VALUE=DATE:20250605",
			"SUMMARY:Reserved",
		),
		vevent(
			"UID:keeper",
			"DTSTART;VALUE=DATE:20250610",
			"DTEND;VALUE=DATE:20250612",
		),
	)

	result, err := NewParser(models.PlatformOther, "UTC").Parse(raw)
	require.NoError(t, err)
	assert.Len(t, result.Events, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "keeper", result.Events[0].ExternalID)
}

func TestParse_UnparseableDateIsSkipped(t *testing.T) {
	raw := calendar(
		vevent(
			"UID:bad-date",
			"DTSTART:whenever",
			"DTEND;VALUE=DATE:20250605",
		),
	)

	result, err := NewParser(models.PlatformOther, "UTC").Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Equal(t, 1, result.Skipped)
}

func TestParse_MissingDTENDIsLowConfidence(t *testing.T) {
	raw := calendar(
		vevent(
			"UID:no-end",
			"DTSTART;VALUE=DATE:20250601",
		),
	)

	result, err := NewParser(models.PlatformOther, "UTC").Parse(raw)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)

	ev := result.Events[0]
	assert.True(t, ev.LowConfidence)
	assert.True(t, ev.CheckOut.Equal(ev.CheckIn), "missing DTEND must not invent a one-night stay")
}

func TestParse_CancelledStatus(t *testing.T) {
	raw := calendar(
		vevent(
			"UID:cancelled",
			"DTSTART;VALUE=DATE:20250601",
			"DTEND;VALUE=DATE:20250605",
			"STATUS:CANCELLED",
		),
	)

	result, err := NewParser(models.PlatformOther, "UTC").Parse(raw)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, models.BookingCancelled, result.Events[0].Status)
}

func TestParse_UTCDatetimeNormalizedToPropertyTimezone(t *testing.T) {
	// 2025-06-02 03:00 UTC is still 2025-06-01 in New York.
	raw := calendar(
		vevent(
			"UID:tz",
			"DTSTART:20250602T030000Z",
			"DTEND:20250606T030000Z",
		),
	)

	result, err := NewParser(models.PlatformOther, "America/New_York").Parse(raw)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)

	ev := result.Events[0]
	assert.Equal(t, 2025, ev.CheckIn.Year())
	assert.Equal(t, time.June, ev.CheckIn.Month())
	assert.Equal(t, 1, ev.CheckIn.Day())
	assert.Equal(t, 5, ev.CheckOut.Day())
}

func TestParse_FoldedLines(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:folded-\r\n uid-value\r\n" +
		"DTSTART;VALUE=DATE:20250601\r\n" +
		"DTEND;VALUE=DATE:20250605\r\n" +
		"SUMMARY:Reserved - Jane\r\n  Smith\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	result, err := NewParser(models.PlatformVRBO, "UTC").Parse(raw)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "folded-uid-value", result.Events[0].ExternalID)
	assert.Equal(t, "Jane Smith", result.Events[0].GuestName)
}

func TestParse_GuestNameQuirks(t *testing.T) {
	tests := []struct {
		name     string
		platform models.Platform
		summary  string
		want     string
	}{
		{"airbnb reserved placeholder", models.PlatformAirbnb, "Reserved", "Guest"},
		{"airbnb block placeholder", models.PlatformAirbnb, "Airbnb (Not available)", "Guest"},
		{"vrbo name extraction", models.PlatformVRBO, "Reserved - John Smith", "John Smith"},
		{"vrbo block placeholder", models.PlatformVRBO, "Blocked", "Guest"},
		{"bookingcom guest name", models.PlatformBookingCom, "Maria Garcia", "Maria Garcia"},
		{"bookingcom closed placeholder", models.PlatformBookingCom, "CLOSED - Not available", "Guest"},
		{"generic summary", models.PlatformOther, "Stay for Bob", "Stay for Bob"},
		{"generic empty", models.PlatformOther, "", "Guest"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := calendar(vevent(
				"UID:x",
				"DTSTART;VALUE=DATE:20250601",
				"DTEND;VALUE=DATE:20250605",
				"SUMMARY:"+tc.summary,
			))

			result, err := NewParser(tc.platform, "UTC").Parse(raw)
			require.NoError(t, err)
			require.Len(t, result.Events, 1)
			assert.Equal(t, tc.want, result.Events[0].GuestName)
		})
	}
}

func TestParse_EscapedValues(t *testing.T) {
	raw := calendar(vevent(
		"UID:esc",
		"DTSTART;VALUE=DATE:20250601",
		"DTEND;VALUE=DATE:20250605",
		"SUMMARY:Smith\\, John",
	))

	result, err := NewParser(models.PlatformOther, "UTC").Parse(raw)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "Smith, John", result.Events[0].GuestName)
}
