// Package bookinggate implements BookingGate: the admission check and
// payload normalization a book_appointment control must pass before it
// reaches the CRM (spec §4.9).
package bookinggate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// exactClockTimeRe matches an explicit clock time like "2pm", "2:30 pm",
// "14:00". It deliberately does not match bare day words ("tomorrow")
// or vague windows ("afternoon").
var exactClockTimeRe = regexp.MustCompile(`(?i)\b(1[0-2]|0?[1-9])(:[0-5]\d)?\s*(am|pm)\b|\b([01]?\d|2[0-3]):[0-5]\d\b`)

const recencyWindow = 5 * time.Minute

// ContainsExactClockTime reports whether text names a specific clock
// time rather than a vague day/window.
func ContainsExactClockTime(text string) bool {
	return exactClockTimeRe.MatchString(text)
}

var affirmativeRe = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|sure|sounds good|that works|perfect|ok|okay)\b`)

// IsAffirmativeConfirmation reports whether text is a bare "yes"-style
// confirmation rather than new content.
func IsAffirmativeConfirmation(text string) bool {
	return affirmativeRe.MatchString(text)
}

// Admit implements spec §4.9's admission rule: either the last
// accepted utterance itself names an exact clock time, or it's an
// affirmative confirmation and an exact clock time was accepted within
// the last 5 minutes.
func Admit(lastAcceptedText string, lastExactTimeAcceptedAt, now time.Time) bool {
	if ContainsExactClockTime(lastAcceptedText) {
		return true
	}
	if IsAffirmativeConfirmation(lastAcceptedText) && !lastExactTimeAcceptedAt.IsZero() {
		return now.Sub(lastExactTimeAcceptedAt) <= recencyWindow
	}
	return false
}

// NormalizeStartTime accepts ISO-8601, epoch seconds, or epoch
// milliseconds (values below 10^12 are treated as seconds) and
// returns a UTC time.
func NormalizeStartTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 1_000_000_000_000 {
			return time.Unix(n, 0).UTC(), nil
		}
		return time.UnixMilli(n).UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ResolveLeadTZ implements the lead-tz precedence chain: CRM-provided
// lead tz, then model-provided, then agent tz, then America/Phoenix.
// Any invalid value falls through to the next link.
func ResolveLeadTZ(crmLeadTZ, modelLeadTZ, agentTZ string) string {
	for _, candidate := range []string{crmLeadTZ, modelLeadTZ, agentTZ, "America/Phoenix"} {
		if validIANA(candidate) {
			return candidate
		}
	}
	return "America/Phoenix"
}

// ResolveAgentTZ implements the agent-tz precedence chain: CRM-provided
// agent tz always wins over any model-provided value.
func ResolveAgentTZ(crmAgentTZ, modelAgentTZ string) string {
	for _, candidate := range []string{crmAgentTZ, modelAgentTZ, "America/Phoenix"} {
		if validIANA(candidate) {
			return candidate
		}
	}
	return "America/Phoenix"
}

func validIANA(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// Request is the normalized payload BookingGate hands to the CRM
// client for POST /book-appointment.
type Request struct {
	AICallSessionID string    `json:"aiCallSessionId"`
	LeadID          string    `json:"leadId"`
	StartTimeUTC    time.Time `json:"startTimeUtc"`
	DurationMinutes int       `json:"durationMinutes"`
	LeadTimeZone    string    `json:"leadTimeZone"`
	AgentTimeZone   string    `json:"agentTimeZone"`
	Notes           string    `json:"notes"`
	Source          string    `json:"source"`
}
