package player

import "errors"

var (
	// ErrDeviceUnavailable is returned by Play when the output device cannot
	// be opened. Player state is left unchanged.
	ErrDeviceUnavailable = errors.New("audio output device unavailable")

	// ErrSessionMismatch is returned by Enqueue when the chunk belongs to a
	// session that is no longer active. Producers treat it as a signal to stop;
	// it is an expected outcome of cancellation racing in-flight synthesis.
	ErrSessionMismatch = errors.New("chunk session does not match active session")

	// ErrPlayerClosed is returned once Close has been called.
	ErrPlayerClosed = errors.New("player closed")

	// ErrInvalidState is returned by Pause/Resume when the player is not in a
	// state the transition applies to.
	ErrInvalidState = errors.New("invalid player state for operation")
)
