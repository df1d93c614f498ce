package stepper

import (
	"strings"

	"github.com/covecrm/dialer-bridge/internal/domain"
)

// Sentiment is a coarse read on the user's last utterance, used only
// to pick a bland, safe ack prefix — never to drive NLU decisions.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

var negativeWords = []string{"no", "not", "can't", "cant", "won't", "wont", "never", "don't", "dont"}
var positiveWords = []string{"yes", "yeah", "yep", "sure", "sounds good", "great", "perfect", "ok", "okay"}

// DetectSentiment is a deliberately blunt keyword check; spec's
// Non-goals exclude real NLU.
func DetectSentiment(text string) Sentiment {
	lower := strings.ToLower(text)
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			return SentimentNegative
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			return SentimentPositive
		}
	}
	return SentimentNeutral
}

// ackPrefixes is intentionally bland to avoid mis-empathy, per spec §4.8.
var ackPrefixes = map[domain.StepType]map[Sentiment]string{
	domain.StepYesNoQuestion: {
		SentimentPositive: "Perfect.",
		SentimentNegative: "I hear you.",
		SentimentNeutral:  "Got it.",
	},
	domain.StepTimeQuestion: {
		SentimentPositive: "Got you.",
		SentimentNegative: "I hear you.",
		SentimentNeutral:  "Got it.",
	},
	domain.StepOpenQuestion: {
		SentimentPositive: "Got you.",
		SentimentNegative: "I hear you.",
		SentimentNeutral:  "Got it.",
	},
	domain.StepStatement: {
		SentimentPositive: "Perfect.",
		SentimentNegative: "I hear you.",
		SentimentNeutral:  "Got it.",
	},
}

// AckPrefix picks the ack line for the previous step type and the
// user's apparent sentiment.
func AckPrefix(prevType domain.StepType, userText string) string {
	sentiment := DetectSentiment(userText)
	if byType, ok := ackPrefixes[prevType]; ok {
		if line, ok := byType[sentiment]; ok {
			return line
		}
	}
	return "Got it."
}
