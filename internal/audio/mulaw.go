// Package audio implements the duplex μ-law audio plane: the inbound
// silence/voice classifier and the outbound 20ms pacer. Both operate
// on raw G.711 μ-law bytes — no Opus, no RTP, no SDP negotiation, to
// match the carrier's and the model's plain-websocket wire contracts.
package audio

import "sync"

const (
	// FrameBytes is one 20ms μ-law frame at 8kHz: 160 samples, 1 byte each.
	FrameBytes = 160
	// SilenceByte is μ-law silence (encodes to ~0 PCM amplitude).
	SilenceByte byte = 0xFF
)

var (
	lutOnce sync.Once
	muLawToPCM [256]int16
)

// buildLUT constructs the standard G.711 μ-law -> linear PCM16 table
// once per process, per spec's explicit "build once, never per frame"
// guidance.
func buildLUT() {
	const bias = 0x84
	for i := 0; i < 256; i++ {
		b := byte(^i)
		sign := b & 0x80
		exponent := (b >> 4) & 0x07
		mantissa := b & 0x0F
		sample := (int32(mantissa) << 3) + bias
		sample <<= exponent
		sample -= bias
		if sign != 0 {
			sample = -sample
		}
		muLawToPCM[i] = int16(sample)
	}
}

// DecodeSample converts one μ-law byte to linear PCM16.
func DecodeSample(b byte) int16 {
	lutOnce.Do(buildLUT)
	return muLawToPCM[b]
}

// Decode converts a buffer of μ-law bytes to linear PCM16 samples.
func Decode(frame []byte) []int16 {
	lutOnce.Do(buildLUT)
	out := make([]int16, len(frame))
	for i, b := range frame {
		out[i] = muLawToPCM[b]
	}
	return out
}
