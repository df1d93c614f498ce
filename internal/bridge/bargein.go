package bridge

import (
	"context"
	"encoding/base64"

	"github.com/covecrm/dialer-bridge/internal/audio"
	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"go.uber.org/zap"
)

const (
	ringBufferSlots   = 10
	bargeInAudioMsCap = 800
	cancelCooldownMs  = 650
	sustainedSpeechMs = 700
	cancelThrottleMs  = 500
)

// BargeInController implements spec §4.5: it watches inbound frames
// while the model is speaking and decides when the user has
// interrupted it for real.
type BargeInController struct {
	call      *domain.Call
	phase     *PhaseController
	modelLink modelTransport
	classify  audio.Classifier
}

func NewBargeInController(call *domain.Call, phase *PhaseController, link modelTransport) *BargeInController {
	return &BargeInController{call: call, phase: phase, modelLink: link}
}

// active reports whether the controller should be watching inbound
// frames at all: aiSpeaking ∧ responseInFlight ∧ ¬outboundOpenAiDone.
func (b *BargeInController) active() bool {
	return b.call.Flags.AISpeaking && b.call.Flags.ResponseInFlight && !b.call.Outbound.OpenAIDone
}

// OnInboundFrame runs on every inbound telephony frame while the
// controller is active. It returns true if a cancel was fired.
func (b *BargeInController) OnInboundFrame(ctx context.Context, frame []byte, nowMs int64) bool {
	if !b.active() {
		return false
	}
	if b.classify.IsSilence(frame) {
		return false
	}

	b.call.BargeInAudioMs += 20
	if b.call.BargeInAudioMs > bargeInAudioMsCap {
		b.call.BargeInAudioMs = bargeInAudioMsCap
	}
	b.pushRing(frame)

	cooldownElapsed := nowMs-b.call.Timing.AIAudioStartedAt >= cancelCooldownMs
	sustained := b.call.BargeInAudioMs >= sustainedSpeechMs
	if !cooldownElapsed || !sustained {
		return false
	}

	// Guard: never cancel on a model-done race.
	if b.call.Timing.LastAIDoneAt >= b.call.Timing.AIAudioStartedAt {
		return false
	}
	// Throttle: at most one cancel per cancelThrottleMs.
	if nowMs-b.call.Timing.LastCancelAt < cancelThrottleMs {
		return false
	}

	b.cancel(ctx, nowMs)
	return true
}

func (b *BargeInController) pushRing(frame []byte) {
	cp := append([]byte(nil), frame...)
	b.call.RingBuffer = append(b.call.RingBuffer, cp)
	if len(b.call.RingBuffer) > ringBufferSlots {
		b.call.RingBuffer = b.call.RingBuffer[len(b.call.RingBuffer)-ringBufferSlots:]
	}
}

// cancel implements the atomic cancel action of spec §4.5.
func (b *BargeInController) cancel(ctx context.Context, nowMs int64) {
	if err := b.modelLink.ResponseCancel(); err != nil {
		logger.Base().Warn("barge-in response.cancel failed", zap.Error(err), zap.String("callId", b.call.CallID))
	}
	if err := b.modelLink.ClearAudioBuffer(); err != nil {
		logger.Base().Warn("barge-in input_audio_buffer.clear failed", zap.Error(err), zap.String("callId", b.call.CallID))
	}

	b.call.Outbound.Reset()
	b.call.Outbound.OpenAIDone = true
	b.phase.SetAISpeaking(false)
	b.phase.SetWaitingForResponse(false)
	b.phase.SetResponseInFlight(false)

	b.call.Timing.LastCancelAt = nowMs
	b.call.BargeInAudioMs = 0

	logger.Base().Info("barge-in cancel fired", zap.String("callId", b.call.CallID))
}

// FlushRing sends the ring-buffered pre-cancel frames to the model as
// input_audio_buffer.append calls, ahead of any live frame, then
// clears the buffer. Call this once, on the next inbound frame after
// a cancel.
func (b *BargeInController) FlushRing() {
	if len(b.call.RingBuffer) == 0 {
		return
	}
	for _, frame := range b.call.RingBuffer {
		if err := b.modelLink.AppendAudio(base64.StdEncoding.EncodeToString(frame)); err != nil {
			logger.Base().Warn("barge-in ring flush append failed", zap.Error(err), zap.String("callId", b.call.CallID))
			break
		}
	}
	b.call.RingBuffer = nil
}
