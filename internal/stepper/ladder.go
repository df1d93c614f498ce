package stepper

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Window is a named slice of the day the ladder offers times from.
type Window string

const (
	WindowMorning       Window = "morning"
	WindowLateMorning    Window = "late_morning"
	WindowAfternoon      Window = "afternoon"
	WindowMidAfternoon   Window = "mid_afternoon"
	WindowLateAfternoon  Window = "late_afternoon"
	WindowEvening        Window = "evening"
	WindowLateEvening    Window = "late_evening"
)

type windowRange struct{ startMin, endMin int }

// windowRanges are minutes-from-midnight, per spec §4.8.
var windowRanges = map[Window]windowRange{
	WindowMorning:      {8 * 60, 11*60 + 30},
	WindowLateMorning:   {10 * 60, 12 * 60},
	WindowAfternoon:     {12 * 60, 16*60 + 30},
	WindowMidAfternoon:  {13*60 + 30, 16 * 60},
	WindowLateAfternoon: {15*60 + 30, 18 * 60},
	WindowEvening:       {17 * 60, 20*60 + 30},
	WindowLateEvening:   {19 * 60, 21*60 + 30},
}

const slotStepMin = 30

// DefaultWindow picks the window per day hint, per spec §4.8.
func DefaultWindow(dayHint string) Window {
	if dayHint == "today" {
		return WindowEvening
	}
	return WindowAfternoon
}

// HashSeed computes the stable 32-bit FNV-1a hash spec §4.8 requires,
// over the exact field tuple it names, in order.
func HashSeed(leadID, sessionID, callID, phone, email, firstName, agentName, dayHint, windowHint string, rungIndex int) uint32 {
	h := fnv.New32a()
	parts := []string{leadID, sessionID, callID, phone, email, firstName, agentName, dayHint, windowHint, fmt.Sprintf("%d", rungIndex)}
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return h.Sum32()
}

// buildSlots enumerates every 30-minute boundary within window, on
// baseDate, in loc.
func buildSlots(window Window, baseDate time.Time, loc *time.Location) []time.Time {
	r, ok := windowRanges[window]
	if !ok {
		r = windowRanges[WindowAfternoon]
	}
	y, m, d := baseDate.In(loc).Date()
	var slots []time.Time
	for min := r.startMin; min <= r.endMin; min += slotStepMin {
		slots = append(slots, time.Date(y, m, d, 0, min/60, min%60, 0, loc))
	}
	return slots
}

// ceilToNext30 rounds t up to the next 30-minute boundary.
func ceilToNext30(t time.Time) time.Time {
	r := t.Truncate(slotStepMin * time.Minute)
	if r.Equal(t) {
		return t
	}
	return r.Add(slotStepMin * time.Minute)
}

// filterTodayFuture implements the "today safety" rule: only slots at
// least 30 minutes from now, evaluated in loc, survive.
func filterTodayFuture(slots []time.Time, now time.Time) []time.Time {
	cutoff := ceilToNext30(now.Add(30 * time.Minute))
	var out []time.Time
	for _, s := range slots {
		if !s.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// ResolveTZ implements the lead-tz-preferred, agent-tz-fallback,
// America/Phoenix-last chain spec §4.8/§4.9 mandates.
func ResolveTZ(leadTZ, agentTZ string) *time.Location {
	for _, candidate := range []string{leadTZ, agentTZ, "America/Phoenix"} {
		if candidate == "" {
			continue
		}
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc
		}
	}
	loc, _ := time.LoadLocation("America/Phoenix")
	if loc == nil {
		loc = time.UTC
	}
	return loc
}

// OfferIdentity is the field tuple HashSeed mixes into the pair
// selection, so the same caller always hears the same pair within a
// call but different callers don't all hear the same offer.
type OfferIdentity struct {
	LeadID, SessionID, CallID, Phone, Email, FirstName, AgentName string
}

// Offer is one generated pair of adjacent clock times plus the spoken
// ladder line for a given rung.
type Offer struct {
	First, Second time.Time
	Line          string
}

// GetTimeOfferLine implements spec §4.8's getTimeOfferLine: selects a
// window (explicit or day-default), builds its 30-minute slot table,
// applies the today-future filter when dayHint=="today", seeds a
// stable pair choice from the offer identity plus rung index, and
// composes the ladder line for that rung (0..4, increasing
// directness). preference narrows the pair toward "later"/"earlier"
// within the window when the user asked for that.
func GetTimeOfferLine(id OfferIdentity, dayHint string, window Window, rungIndex int, preference string, now time.Time, loc *time.Location) Offer {
	if window == "" {
		window = DefaultWindow(dayHint)
	}

	baseDate := now
	if dayHint == "tomorrow" {
		baseDate = now.AddDate(0, 0, 1)
	}

	slots := buildSlots(window, baseDate, loc)
	if dayHint == "today" {
		slots = filterTodayFuture(slots, now)
		if len(slots) < 2 {
			// Today safety fallback: tomorrow afternoon.
			return GetTimeOfferLine(id, "tomorrow", WindowAfternoon, rungIndex, preference, now, loc)
		}
	}
	if len(slots) < 2 {
		// Degenerate window (e.g. bad data): widen to the whole afternoon.
		slots = buildSlots(WindowAfternoon, baseDate, loc)
	}

	seed := HashSeed(id.LeadID, id.SessionID, id.CallID, id.Phone, id.Email, id.FirstName, id.AgentName, dayHint, string(window), rungIndex)
	idx := int(seed) % (len(slots) - 1)
	if idx < 0 {
		idx += len(slots) - 1
	}

	switch preference {
	case "later":
		idx = len(slots) - 2
	case "earlier":
		idx = 0
	}

	first, second := slots[idx], slots[idx+1]
	return Offer{First: first, Second: second, Line: ladderLine(rungIndex, first, second)}
}

// SoonHoursOffer implements the relative-hours branch ("1 hour from
// now / 2 hours from now") used when the caller says "soon"/"asap".
func SoonHoursOffer(now time.Time, rungIndex int) Offer {
	first := now.Add(1 * time.Hour)
	second := now.Add(2 * time.Hour)
	return Offer{
		First:  first,
		Second: second,
		Line:   "I could do 1 hour from now, or 2 hours from now — whichever's easier.",
	}
}

func ladderLine(rung int, first, second time.Time) string {
	f, s := formatClock(first), formatClock(second)
	switch rung {
	case 0:
		return fmt.Sprintf("Would %s or %s work for a quick call?", f, s)
	case 1:
		return fmt.Sprintf("I can do %s or %s — which is better for you?", f, s)
	case 2:
		return fmt.Sprintf("Let's go ahead and lock something in — %s or %s?", f, s)
	case 3:
		return fmt.Sprintf("I really just need one of these: %s or %s.", f, s)
	default:
		return fmt.Sprintf("I can just lock in %s for you, does that work?", f)
	}
}

func formatClock(t time.Time) string {
	return strings.ToLower(t.Format("3:04pm"))
}
