package stepper

import "github.com/covecrm/dialer-bridge/internal/domain"

// templates holds the literal script text per scriptKey. The CRM owns
// the authoritative copy; these are the bridge's built-in fallback so
// a call can still proceed if the context fetch omits a template.
var templates = map[domain.ScriptKey]string{
	domain.ScriptMortgageProtection: `
Say: "Hi, this is calling about the mortgage protection coverage you requested info on, is now still an okay time?"
Then ask: "Did you want to keep the coverage amount near your current mortgage balance?"
Then ask: "Would today or tomorrow work better for a quick call with your agent?"
Then say: "Great, I've got you down, your agent will confirm everything with you directly."
`,
	domain.ScriptFinalExpense: `
Say: "Hi, this is calling about the final expense coverage request you sent in, is now an okay time?"
Then ask: "Did you want coverage to take care of funeral and burial costs?"
Then ask: "Would today or tomorrow work better for a quick call with your agent?"
Then say: "Perfect, you're on the calendar, your agent will take it from here."
`,
	domain.ScriptIULCashValue: `
Say: "Hi, this is calling about the cash-value life policy info you requested, got a couple minutes?"
Then ask: "Were you looking at this mainly for the death benefit or the cash value growth?"
Then ask: "Would today or tomorrow work better for a quick call with your agent?"
Then say: "Got it, you're booked in, your agent will walk through the numbers with you."
`,
	domain.ScriptVeteranLeads: `
Say: "Hi, this is calling about the veteran's life insurance benefit info you requested, is now okay?"
Then ask: "Did you serve active duty or reserve?"
Then ask: "Would today or tomorrow work better for a quick call with your agent?"
Then say: "Appreciate your service, you're on the calendar and your agent will follow up."
`,
	domain.ScriptTruckerLeads: `
Say: "Hi, this is calling about the life insurance info for owner-operators you requested, got a minute?"
Then ask: "Are you currently running solo or with a company?"
Then ask: "Would today or tomorrow work better for a quick call with your agent?"
Then say: "Sounds good, you're booked, your agent will reach out at that time."
`,
	domain.ScriptGenericLife: `
Say: "Hi, this is calling about the life insurance info you requested, is now still an okay time?"
Then ask: "Did you want to go over the coverage amount that fits your budget?"
Then ask: "Would today or tomorrow work better for a quick call with your agent?"
Then say: "Great, you're on the calendar, your agent will confirm the details with you."
`,
}

// BuildScriptSet builds the ordered Step sequence for key, used once
// per call from Context and never mutated afterward (spec §3).
func BuildScriptSet(key domain.ScriptKey) domain.ScriptSet {
	template, ok := templates[key]
	if !ok {
		template = templates[domain.ScriptGenericLife]
	}
	return domain.ScriptSet{Key: key, Steps: ExtractSteps(template)}
}
