// Package control implements VoicemailGuard and ControlDispatcher
// (spec §4.10): the answering-machine check that can end a call
// before it starts, and the discriminator that turns model-emitted
// control blocks into CRM side effects.
package control

import (
	"context"
	"strings"
	"time"

	"github.com/covecrm/dialer-bridge/internal/crm"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"go.uber.org/zap"
)

const (
	voicemailMaxRefreshes = 2
	voicemailBackoff      = 150 * time.Millisecond
)

// VoicemailVerdict is the outcome of a VoicemailGuard check.
type VoicemailVerdict struct {
	IsMachine  bool
	AnsweredBy string
}

// VoicemailGuard polls the CRM context's answeredBy field pre-greeting
// and flags machine/fax/voicemail pickups.
type VoicemailGuard struct {
	crm *crm.Client
}

func NewVoicemailGuard(c *crm.Client) *VoicemailGuard {
	return &VoicemailGuard{crm: c}
}

// Check refreshes context up to voicemailMaxRefreshes times, backing
// off voicemailBackoff between attempts, looking for a machine
// pickup. It returns as soon as a definitive (non-empty) answeredBy
// value is seen or the refresh budget is exhausted.
func (g *VoicemailGuard) Check(ctx context.Context, sessionID, leadID, callSid string) (VoicemailVerdict, error) {
	var last string
	for attempt := 0; attempt <= voicemailMaxRefreshes; attempt++ {
		c, err := g.crm.FetchContext(ctx, sessionID, leadID, callSid)
		if err != nil {
			logger.Base().Warn("voicemail guard context fetch failed", zap.Error(err), zap.Int("attempt", attempt))
		} else {
			last = c.AnsweredBy
			if last != "" {
				break
			}
		}
		if attempt < voicemailMaxRefreshes {
			time.Sleep(voicemailBackoff)
		}
	}

	verdict := VoicemailVerdict{AnsweredBy: last, IsMachine: isMachinePickup(last)}
	if verdict.IsMachine {
		logger.Base().Info("voicemail guard tripped", zap.String("answeredBy", last), zap.String("callSid", callSid))
	}
	return verdict, nil
}

func isMachinePickup(answeredBy string) bool {
	lower := strings.ToLower(answeredBy)
	return strings.Contains(lower, "machine") || strings.Contains(lower, "fax") || strings.Contains(lower, "voicemail")
}
