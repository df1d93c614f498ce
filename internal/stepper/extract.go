// Package stepper implements the deterministic booking dialog
// stepper: script extraction, step classification, the time-offer
// ladder, and tz-aware today-only-future filtering (spec §4.8).
package stepper

import (
	"regexp"
	"strings"

	"github.com/covecrm/dialer-bridge/internal/domain"
)

var lineIntro = regexp.MustCompile(`(?i)^\s*(Say|Then ask|Then say)\s*:\s*"(.+)"\s*$`)

// fallbackLine is spoken when a script template yields nothing usable.
const fallbackLine = "I can just lock in a quick call with your agent, does that work?"

// ExtractSteps parses a script template of `Say: "…"` / `Then ask: "…"`
// / `Then say: "…"` lines into an ordered, de-duplicated sequence of
// Steps. An empty or unparseable template falls back to a single
// booking line, per spec §4.8.
func ExtractSteps(template string) []domain.Step {
	seen := make(map[string]bool)
	var steps []domain.Step

	for _, line := range strings.Split(template, "\n") {
		m := lineIntro.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		steps = append(steps, classify(text))
	}

	if len(steps) == 0 {
		return []domain.Step{classify(fallbackLine)}
	}
	return steps
}
