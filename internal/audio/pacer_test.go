package audio

import (
	"testing"

	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestTickFullFrame(t *testing.T) {
	buf := &domain.OutboundBuffer{Bytes: make([]byte, 320)}
	res := Tick(buf)
	require.Len(t, res.Frame, FrameBytes)
	require.False(t, res.StopPacer)
	require.False(t, res.CadenceFiller)
	require.Len(t, buf.Bytes, 160)
}

func TestTickDoneAndEmptyStops(t *testing.T) {
	buf := &domain.OutboundBuffer{OpenAIDone: true}
	res := Tick(buf)
	require.Nil(t, res.Frame)
	require.True(t, res.StopPacer)
	require.True(t, res.AttemptReplay)
}

func TestTickDonePartialPadsAndStops(t *testing.T) {
	buf := &domain.OutboundBuffer{Bytes: []byte{1, 2, 3}, OpenAIDone: true}
	res := Tick(buf)
	require.Len(t, res.Frame, FrameBytes)
	require.Equal(t, byte(1), res.Frame[0])
	require.Equal(t, SilenceByte, res.Frame[159])
	require.True(t, res.StopPacer)
	require.Empty(t, buf.Bytes)
}

func TestTickNotDonePartialPadsAndContinues(t *testing.T) {
	buf := &domain.OutboundBuffer{Bytes: []byte{9, 9}}
	res := Tick(buf)
	require.Len(t, res.Frame, FrameBytes)
	require.False(t, res.StopPacer)
}

func TestTickEmptyNotDoneEmitsSilence(t *testing.T) {
	buf := &domain.OutboundBuffer{}
	res := Tick(buf)
	require.Len(t, res.Frame, FrameBytes)
	for _, b := range res.Frame {
		require.Equal(t, SilenceByte, b)
	}
	require.False(t, res.StopPacer)
	require.True(t, res.CadenceFiller)
}

func TestClassifierFastPathSilence(t *testing.T) {
	c := Classifier{}
	frame := make([]byte, FrameBytes)
	for i := range frame {
		frame[i] = SilenceByte
	}
	require.True(t, c.IsSilence(frame))
}

func TestClassifierVoiceFrame(t *testing.T) {
	c := Classifier{}
	frame := make([]byte, FrameBytes)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 0x00
		} else {
			frame[i] = 0x80
		}
	}
	require.False(t, c.IsSilence(frame))
}

func TestClassifierEmptyIsSilence(t *testing.T) {
	c := Classifier{}
	require.True(t, c.IsSilence(nil))
}
