package voicemode

import (
	"fmt"

	"github.com/murmurkit/murmur/pkg/errorsx"
)

// Mode governs how microphone capture interacts with active playback.
type Mode int32

const (
	// ModeFull keeps the recognizer fully listening during playback; any
	// detected speech may stop playback (true barge-in). Only safe with AEC
	// or a headset.
	ModeFull Mode = iota
	// ModeWait pauses frame processing while playback is active.
	ModeWait
	// ModeStop suppresses normal transcripts during playback but keeps the
	// stop-phrase detector fed.
	ModeStop
	// ModePushToTalk behaves like ModeStop while playing; capture start and
	// stop are externally driven otherwise.
	ModePushToTalk
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeWait:
		return "wait"
	case ModeStop:
		return "stop"
	case ModePushToTalk:
		return "push_to_talk"
	default:
		return "unknown"
	}
}

func (m Mode) valid() bool {
	return m >= ModeFull && m <= ModePushToTalk
}

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "full":
		return ModeFull, nil
	case "wait":
		return ModeWait, nil
	case "stop":
		return ModeStop, nil
	case "push_to_talk", "ptt":
		return ModePushToTalk, nil
	default:
		return ModeStop, errorsx.Wrap(fmt.Errorf("unknown voice mode %q", s), errorsx.ReasonInvalidMode)
	}
}
