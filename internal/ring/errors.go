package ring

import "errors"

// Error kinds returned by create_or_open and bind operations, per the
// error handling design: these are fatal for the endpoint they apply to
// and are never generated on the real-time read/write path.
var (
	// ErrProtocolMismatch is returned when an existing segment's header
	// magic or protocol_version does not match what this build expects.
	ErrProtocolMismatch = errors.New("ring: protocol version mismatch")

	// ErrInvalidFormat is returned when sample_rate, channels, or format
	// fall outside the supported tables.
	ErrInvalidFormat = errors.New("ring: invalid sample rate, channel count, or format")

	// ErrIO wraps failures to create, open, or map the backing segment.
	ErrIO = errors.New("ring: io error")

	// ErrCorrupt indicates a header invariant violation (write_index <
	// read_index, or used > capacity) detected on bind or health check.
	// It is not self-healed; the caller should disconnect and reconnect.
	ErrCorrupt = errors.New("ring: header invariant violated")
)
