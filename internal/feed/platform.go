package feed

import (
	"strings"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// placeholderGuest is used when a feed does not expose a usable guest name.
// Airbnb in particular only publishes "Reserved" in the SUMMARY.
const placeholderGuest = "Guest"

// platformQuirks isolates per-platform tolerance for non-standard SUMMARY
// and DESCRIPTION usage, so the parser core stays free of platform branches.
type platformQuirks interface {
	guestName(summary, description string) string
}

func quirksFor(platform models.Platform) platformQuirks {
	switch platform {
	case models.PlatformAirbnb:
		return airbnbQuirks{}
	case models.PlatformVRBO:
		return vrboQuirks{}
	case models.PlatformBookingCom:
		return bookingComQuirks{}
	default:
		return genericQuirks{}
	}
}

// airbnbQuirks: Airbnb SUMMARY is "Reserved" for bookings and
// "Airbnb (Not available)" for blocked ranges; neither carries a name.
type airbnbQuirks struct{}

func (airbnbQuirks) guestName(summary, _ string) string {
	s := strings.TrimSpace(summary)
	if s == "" || strings.EqualFold(s, "Reserved") || containsFold(s, "not available") {
		return placeholderGuest
	}
	return s
}

// vrboQuirks: VRBO uses "Reserved - Jane Smith" for bookings and
// "Blocked"/"Unavailable" for owner blocks.
type vrboQuirks struct{}

func (vrboQuirks) guestName(summary, _ string) string {
	s := strings.TrimSpace(summary)
	if name, found := strings.CutPrefix(s, "Reserved - "); found {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	if s == "" || strings.EqualFold(s, "Reserved") || strings.EqualFold(s, "Blocked") || containsFold(s, "unavailable") {
		return placeholderGuest
	}
	return s
}

// bookingComQuirks: Booking.com puts the guest name directly in SUMMARY and
// uses "CLOSED - Not available" for closed dates.
type bookingComQuirks struct{}

func (bookingComQuirks) guestName(summary, _ string) string {
	s := strings.TrimSpace(summary)
	if s == "" || containsFold(s, "not available") || strings.HasPrefix(strings.ToUpper(s), "CLOSED") {
		return placeholderGuest
	}
	return s
}

type genericQuirks struct{}

func (genericQuirks) guestName(summary, _ string) string {
	if s := strings.TrimSpace(summary); s != "" {
		return s
	}
	return placeholderGuest
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
