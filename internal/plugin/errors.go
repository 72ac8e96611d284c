package plugin

import "errors"

var (
	// ErrAttachExhausted is returned when ring attach retries exhaust
	// their budget (15 attempts) without a successful bind.
	ErrAttachExhausted = errors.New("plugin: ring attach retries exhausted")
	// ErrUnsupportedFormat names a stream SampleType the format converter
	// does not recognize. The converter does not return it: it reports
	// zero converted frames for such a type.
	ErrUnsupportedFormat = errors.New("plugin: unsupported stream format")
)
