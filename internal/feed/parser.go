package feed

import (
	"bufio"
	"errors"
	"strings"
	"time"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// ErrInvalidFormat indicates the feed body is not an iCalendar document.
// This aborts the whole feed for the current sync pass.
var ErrInvalidFormat = errors.New("invalid calendar format: missing BEGIN:VCALENDAR")

// ParsedEvent is one normalized reservation extracted from a VEVENT block.
// Check-in and check-out are calendar dates (midnight in the feed's
// configured timezone), per the all-day convention booking feeds use.
type ParsedEvent struct {
	ExternalID    string
	GuestName     string
	CheckIn       time.Time
	CheckOut      time.Time
	Status        models.BookingStatus
	LowConfidence bool
	RawBlock      string
}

// ParseResult holds the events extracted from one feed body plus the number
// of malformed VEVENT blocks that were skipped.
type ParseResult struct {
	Events  []ParsedEvent
	Skipped int
}

// Parser parses iCal/ICS calendar feeds for one subscribed feed.
type Parser struct {
	loc    *time.Location
	quirks platformQuirks
}

// NewParser creates a parser for the given platform and property timezone.
// An unknown timezone falls back to UTC.
func NewParser(platform models.Platform, timezone string) *Parser {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Parser{
		loc:    loc,
		quirks: quirksFor(platform),
	}
}

// Parse extracts reservation events from raw iCalendar text.
//
// A body without a VCALENDAR wrapper is a hard error. Individual VEVENT
// blocks missing a UID or carrying unparseable dates are soft failures:
// skipped, counted, never fatal for the feed.
func (p *Parser) Parse(raw string) (*ParseResult, error) {
	lines := unfold(raw)

	sawCalendar := false
	for _, line := range lines {
		if strings.HasPrefix(strings.ToUpper(line), "BEGIN:VCALENDAR") {
			sawCalendar = true
			break
		}
	}
	if !sawCalendar {
		return nil, ErrInvalidFormat
	}

	result := &ParseResult{}
	var cur *rawEvent

	for _, line := range lines {
		name, value := splitProperty(line)

		switch name {
		case "BEGIN":
			if strings.EqualFold(value, "VEVENT") {
				cur = &rawEvent{props: make(map[string]string)}
				cur.block.WriteString(line)
				cur.block.WriteString("\n")
			}
		case "END":
			if strings.EqualFold(value, "VEVENT") && cur != nil {
				cur.block.WriteString(line)
				cur.block.WriteString("\n")
				if ev, ok := p.finalize(cur); ok {
					result.Events = append(result.Events, ev)
				} else {
					result.Skipped++
				}
				cur = nil
			}
		default:
			if cur != nil {
				cur.block.WriteString(line)
				cur.block.WriteString("\n")
				switch name {
				case "UID", "SUMMARY", "DESCRIPTION", "DTSTART", "DTEND", "STATUS":
					cur.props[name] = unescape(value)
				}
			}
		}
	}

	return result, nil
}

type rawEvent struct {
	props map[string]string
	block strings.Builder
}

// finalize validates the accumulated properties and builds a ParsedEvent.
// ok is false when the block must be skipped.
func (p *Parser) finalize(ev *rawEvent) (ParsedEvent, bool) {
	uid := strings.TrimSpace(ev.props["UID"])
	if uid == "" {
		return ParsedEvent{}, false
	}

	checkIn, err := p.parseDate(ev.props["DTSTART"])
	if err != nil {
		return ParsedEvent{}, false
	}

	out := ParsedEvent{
		ExternalID: uid,
		GuestName:  p.quirks.guestName(ev.props["SUMMARY"], ev.props["DESCRIPTION"]),
		CheckIn:    checkIn,
		Status:     parseStatus(ev.props["STATUS"]),
		RawBlock:   ev.block.String(),
	}

	if rawEnd, present := ev.props["DTEND"]; present {
		checkOut, err := p.parseDate(rawEnd)
		if err != nil {
			return ParsedEvent{}, false
		}
		out.CheckOut = checkOut
	} else {
		// Zero-night placeholder, surfaced for review rather than silently
		// assumed to be a one-night stay.
		out.CheckOut = checkIn
		out.LowConfidence = true
	}

	return out, true
}

// parseDate normalizes an iCal date or datetime value to a calendar date in
// the feed's timezone.
func (p *Parser) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	// UTC-qualified datetimes are converted to the property's local calendar
	// date before truncation.
	if t, err := time.Parse("20060102T150405Z", value); err == nil {
		return p.truncate(t.In(p.loc)), nil
	}

	// Floating/local datetimes and plain dates are read in the property's
	// timezone directly.
	for _, format := range []string{
		"20060102T150405",
		"20060102",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(format, value, p.loc); err == nil {
			return p.truncate(t.In(p.loc)), nil
		}
	}

	return time.Time{}, errors.New("unrecognized date value: " + value)
}

func (p *Parser) truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
}

func parseStatus(value string) models.BookingStatus {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "CANCELLED":
		return models.BookingCancelled
	case "TENTATIVE":
		return models.BookingTentative
	default:
		// STATUS is optional; bookings default to confirmed.
		return models.BookingConfirmed
	}
}

// unfold joins RFC 5545 folded lines (continuations start with a space or
// tab) into single logical lines.
func unfold(raw string) []string {
	var lines []string

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}

	return lines
}

// splitProperty splits a content line into its property name and value,
// discarding property parameters (e.g. DTSTART;VALUE=DATE:20250601).
func splitProperty(line string) (name, value string) {
	colonIdx := strings.Index(line, ":")
	if colonIdx == -1 {
		return "", ""
	}

	name = line[:colonIdx]
	value = line[colonIdx+1:]

	if semiIdx := strings.Index(name, ";"); semiIdx != -1 {
		name = name[:semiIdx]
	}

	return strings.ToUpper(name), value
}

// unescape reverses common iCal escape sequences.
func unescape(value string) string {
	value = strings.ReplaceAll(value, "\\n", "\n")
	value = strings.ReplaceAll(value, "\\,", ",")
	value = strings.ReplaceAll(value, "\\;", ";")
	value = strings.ReplaceAll(value, "\\\\", "\\")
	return value
}
