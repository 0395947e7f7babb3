package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Playback side.
	ReasonDeviceUnavailable ReasonCode = "device_unavailable"
	ReasonDeviceUnderrun    ReasonCode = "device_underrun"
	ReasonSessionCancelled  ReasonCode = "session_cancelled"
	ReasonSessionMismatch   ReasonCode = "session_mismatch"
	ReasonSynthConnect      ReasonCode = "synth_connect"
	ReasonSynthSend         ReasonCode = "synth_send"
	ReasonSynthRateLimit    ReasonCode = "synth_rate_limit"

	// Recognition side.
	ReasonCaptureStart       ReasonCode = "capture_start"
	ReasonSegmentTranscribe  ReasonCode = "segment_transcribe"
	ReasonSTTConnect         ReasonCode = "stt_connect"
	ReasonSTTSend            ReasonCode = "stt_send"
	ReasonSTTRateLimit       ReasonCode = "stt_rate_limit"
	ReasonInvalidMode        ReasonCode = "invalid_mode"
	ReasonRecognizerStopped  ReasonCode = "recognizer_stopped"
	ReasonTranscriberTimeout ReasonCode = "transcriber_timeout"
)
