package stepper

import (
	"regexp"
	"strings"

	"github.com/covecrm/dialer-bridge/internal/domain"
)

var (
	timeCueWords = []string{
		"time", "today", "tomorrow", "morning", "afternoon", "evening",
		"o'clock", "schedule", "available", "works best",
		"what day",
	}

	// clockSuffixRe matches "am"/"pm" only after a digit, so words like
	// "amount" do not read as a time cue.
	clockSuffixRe = regexp.MustCompile(`\d\s*(am|pm)\b`)

	discoveryRe = regexp.MustCompile(`\b(coverage|health|balance|age|beneficiary|income|mortgage amount|policy)\b`)

	yesNoLead = regexp.MustCompile(`(?i)^\s*(did|do|does|is|are|was|were|can|could|will|would|have|has|should)\b`)

	dayChoiceRe  = regexp.MustCompile(`(?i)today\s+or\s+tomorrow`)
	exactTimeRe  = regexp.MustCompile(`(?i)what time (works|is best|works best|would work)`)
)

// classify implements spec §4.8's lowercased-substring priority order.
func classify(text string) domain.Step {
	lower := strings.ToLower(text)

	step := domain.Step{Text: text}

	switch {
	case containsAny(lower, timeCueWords) || clockSuffixRe.MatchString(lower):
		step.Type = domain.StepTimeQuestion
		step.IsDayChoiceQuestion = dayChoiceRe.MatchString(lower)
		step.IsExactTimeQuestion = exactTimeRe.MatchString(lower) || (!step.IsDayChoiceQuestion && strings.Contains(lower, "time"))
	case strings.Contains(text, "?") || yesNoLead.MatchString(lower):
		if yesNoLead.MatchString(lower) {
			step.Type = domain.StepYesNoQuestion
		} else {
			step.Type = domain.StepOpenQuestion
		}
	default:
		step.Type = domain.StepStatement
	}

	return step
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// IsDiscoveryLine reports whether text is a discovery question
// (coverage/health/balance/age, etc.), capped at 2 per call by
// TurnGate.
func IsDiscoveryLine(text string) bool {
	return discoveryRe.MatchString(strings.ToLower(text))
}
