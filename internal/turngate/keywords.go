// Package turngate implements TurnGate: the decision tree that turns
// a committed user utterance into an accepted answer, a reprompt, an
// objection rebuttal, or a queued replay (spec §4.7).
package turngate

import (
	"regexp"
	"strings"
)

var fillerWords = []string{
	"um", "uh", "hmm", "what", "huh", "sorry", "wait", "hold on",
	"one sec", "say that again",
}

func IsFiller(text string) bool {
	lower := strings.TrimSpace(strings.ToLower(text))
	for _, f := range fillerWords {
		if lower == f || strings.HasPrefix(lower, f+" ") {
			return true
		}
	}
	return false
}

var negativeHearingPhrases = []string{
	"no", "can't hear", "cant hear", "breaking up", "speak up", "what did you say",
}

func IsNegativeHearing(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range negativeHearingPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var objectionRe = regexp.MustCompile(`(?i)\b(not interested|no thanks|remove me|do not call|don'?t call|stop calling|who is this|who's calling|scam|spam)\b`)

// DetectObjection reports whether text raises an objection requiring
// a rebuttal.
func DetectObjection(text string) bool {
	return objectionRe.MatchString(text)
}

var questionRe = regexp.MustCompile(`(?i)\b(why|what is this about|how did you get my number|who gave you this number)\b`)

// DetectQuestionKindForTurn reports whether text is a clarifying
// question the assistant should answer with a short rebuttal before
// returning to the script.
func DetectQuestionKindForTurn(text string) bool {
	return questionRe.MatchString(text) || strings.Contains(text, "?")
}

var indecisionRe = regexp.MustCompile(`(?i)\b(you pick|whenever|i don'?t (know|care)|doesn'?t matter|up to you)\b`)

func IsIndecision(text string) bool {
	return indecisionRe.MatchString(text)
}

var laterRe = regexp.MustCompile(`(?i)\blater\b`)
var earlierRe = regexp.MustCompile(`(?i)\bearlier\b`)
var soonRe = regexp.MustCompile(`(?i)\b(asap|as soon as possible|soon|right away)\b`)

func TimePreference(text string) string {
	switch {
	case soonRe.MatchString(text):
		return "soon_hours"
	case laterRe.MatchString(text):
		return "later"
	case earlierRe.MatchString(text):
		return "earlier"
	default:
		return ""
	}
}

var dayOnlyRe = regexp.MustCompile(`(?i)^\s*(today|tomorrow)\s*$`)
var windowOnlyRe = regexp.MustCompile(`(?i)\b(morning|afternoon|evening)\b`)
var dayPlusWindowRe = regexp.MustCompile(`(?i)\b(today|tomorrow)\s+(morning|afternoon|evening)\b`)

func IsDayOnly(text string) bool      { return dayOnlyRe.MatchString(strings.TrimSpace(text)) }
func IsWindowOnly(text string) bool   { return windowOnlyRe.MatchString(text) && !dayPlusWindowRe.MatchString(text) }
func IsDayPlusWindow(text string) bool { return dayPlusWindowRe.MatchString(text) }
