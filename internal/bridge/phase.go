// Package bridge owns the Call actor: the single-goroutine state
// machine that serializes telephony-inbound, model-inbound, and
// pacer-tick events for one call (spec §5), plus PhaseController and
// BargeInController, the two pieces of that state machine that carry
// real decision logic of their own.
package bridge

import (
	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"go.uber.org/zap"
)

// PhaseController owns every mutation of Call.Phase, logging each
// transition the way the teacher's connection state setters do, and
// the logged setters for the response-busy flags (spec §4.6, §5's
// "canonical setters" requirement). Greeting-advance and voicemail
// flags it sets without logging; see domain.Flags for the flags
// written elsewhere.
type PhaseController struct {
	call *domain.Call
}

func NewPhaseController(call *domain.Call) *PhaseController {
	return &PhaseController{call: call}
}

// OnSessionUpdated moves init -> awaiting_greeting_reply.
func (p *PhaseController) OnSessionUpdated() {
	if p.call.Phase != domain.PhaseInit {
		return
	}
	p.transition(domain.PhaseAwaitingGreetingReply)
	p.call.Flags.OpenAIReady = true
	p.call.Flags.OpenAIConfigured = true
}

// ArmGreetingAdvance records the step index the stepper should adopt
// once the greeting is confirmed audible.
func (p *PhaseController) ArmGreetingAdvance(stepIdx int) {
	p.call.Flags.GreetingAdvPending = true
	p.call.Flags.GreetingAdvStepIdx = stepIdx
}

// OnFirstOutboundDelta is called the first time audio actually reaches
// the carrier for the current response. It confirms the greeting was
// heard and, if armed, advances the stepper cursor and promotes the
// call to in_call.
func (p *PhaseController) OnFirstOutboundDelta() {
	if p.call.Phase != domain.PhaseAwaitingGreetingReply {
		return
	}
	if p.call.Flags.GreetingAdvPending {
		p.call.ScriptStepIndex = p.call.Flags.GreetingAdvStepIdx
		p.call.Flags.GreetingAdvPending = false
	}
	p.transition(domain.PhaseInCall)
}

// SetAISpeaking, SetWaitingForResponse, and SetResponseInFlight are
// canonical flag setters so every write is observable in the logs.
func (p *PhaseController) SetAISpeaking(v bool) {
	if p.call.Flags.AISpeaking == v {
		return
	}
	p.call.Flags.AISpeaking = v
	logger.Base().Debug("flag transition", zap.String("callId", p.call.CallID), zap.String("flag", "aiSpeaking"), zap.Bool("value", v))
}

func (p *PhaseController) SetWaitingForResponse(v bool) {
	if p.call.Flags.WaitingForResponse == v {
		return
	}
	p.call.Flags.WaitingForResponse = v
	logger.Base().Debug("flag transition", zap.String("callId", p.call.CallID), zap.String("flag", "waitingForResponse"), zap.Bool("value", v))
}

func (p *PhaseController) SetResponseInFlight(v bool) {
	if p.call.Flags.ResponseInFlight == v {
		return
	}
	p.call.Flags.ResponseInFlight = v
	logger.Base().Debug("flag transition", zap.String("callId", p.call.CallID), zap.String("flag", "responseInFlight"), zap.Bool("value", v))
}

// SetVoicemailSkipArmed trips the voicemail short-circuit.
func (p *PhaseController) SetVoicemailSkipArmed() {
	p.call.Flags.VoicemailSkipArmed = true
}

// End transitions the call to its terminal phase. Any component may
// request it (carrier stop, voicemail, fatal model error).
func (p *PhaseController) End() {
	p.transition(domain.PhaseEnded)
}

func (p *PhaseController) transition(next domain.Phase) {
	prev := p.call.Phase
	p.call.Phase = next
	logger.Base().Info("phase transition",
		zap.String("callId", p.call.CallID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))
}
