package ring

import (
	"fmt"
)

// Config describes the layout a ring should be created with, or the
// layout an existing ring is expected to already have.
type Config struct {
	SampleRate uint32
	Channels   uint32
	Format     Format
	DurationMs uint32
}

func (c Config) validate() error {
	if !SampleRateSupported(c.SampleRate) || !ChannelsSupported(c.Channels) || !c.Format.Valid() {
		return ErrInvalidFormat
	}
	if !DurationSupported(c.DurationMs) {
		return ErrInvalidFormat
	}
	return nil
}

// Handle is a bound connection to one ring segment, the shared-memory
// structure described by the ring file format: a 256-byte header
// followed by the audio payload. A single Handle may be used by either
// the producer (plug-in) or the consumer (host) side; spec comments on
// each method call out which side is expected to call it -- nothing
// here enforces that at the type level, mirroring the C-like contract
// in the spec, since both sides run in different processes and cannot
// share a Go type anyway.
type Handle struct {
	seg    *mmapSegment
	path   string
	cfg    Config
	hdr    header
	payload []byte // view into seg.bytes()[HeaderSize:]
}

// CreateOrOpen binds to the ring segment at path, creating it with the
// given configuration if it doesn't exist, or validating an existing
// segment's header against cfg if it does.
func CreateOrOpen(path string, cfg Config) (*Handle, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	capacity := CapacityFrames(cfg.SampleRate, cfg.DurationMs)
	bytesPerFrame := cfg.Format.BytesPerSample() * cfg.Channels
	size := segmentSize(capacity, bytesPerFrame)

	seg, created, err := createOrOpenSegment(path, size)
	if err != nil {
		return nil, err
	}

	buf := seg.bytes()
	hdr := newHeaderView(buf)

	if created {
		initHeader(hdr, cfg, capacity, bytesPerFrame)
	} else {
		if err := validateExistingHeader(hdr, cfg); err != nil {
			seg.close()
			return nil, err
		}
	}

	return &Handle{
		seg:     seg,
		path:    path,
		cfg:     cfg,
		hdr:     hdr,
		payload: buf[HeaderSize:],
	}, nil
}

func initHeader(hdr header, cfg Config, capacity, bytesPerFrame uint32) {
	hdr.setProtocolVersion(ProtocolVersion)
	hdr.setHeaderSize(HeaderSize)
	hdr.setSampleRate(cfg.SampleRate)
	hdr.setChannels(cfg.Channels)
	hdr.setFormat(cfg.Format)
	hdr.setBytesPerSample(cfg.Format.BytesPerSample())
	hdr.setBytesPerFrame(bytesPerFrame)
	hdr.setCapacityFrames(capacity)
	hdr.setDurationMs(cfg.DurationMs)
	hdr.setDriverCapabilities(0)
	hdr.setHostCapabilities(0)
	hdr.setCreationTimestamp(nowUnix())
	hdr.storeWriteIndex(0)
	hdr.storeReadIndex(0)
	hdr.setDriverConnected(false)
	hdr.setHostConnected(false)
}

func validateExistingHeader(hdr header, cfg Config) error {
	if hdr.protocolVersion() != ProtocolVersion {
		return ErrProtocolMismatch
	}
	if hdr.headerSize() != HeaderSize {
		return ErrProtocolMismatch
	}
	if hdr.sampleRate() != cfg.SampleRate || hdr.channels() != cfg.Channels || hdr.format() != cfg.Format {
		return ErrInvalidFormat
	}
	return hdr.checkInvariants()
}

// Close unbinds from the segment. It does not delete the backing file;
// ownership/lifetime of the file is the registry's (C7) responsibility.
func (h *Handle) Close() error {
	return h.seg.close()
}

// Path returns the filesystem path this handle is bound to.
func (h *Handle) Path() string { return h.path }

// SampleRate, Channels, Format, CapacityFrames expose the ring's
// immutable layout fields.
func (h *Handle) SampleRate() uint32      { return h.hdr.sampleRate() }
func (h *Handle) Channels() uint32        { return h.hdr.channels() }
func (h *Handle) Format() Format          { return h.hdr.format() }
func (h *Handle) CapacityFrames() uint32  { return h.hdr.capacityFrames() }

// Write accepts up to numFrames interleaved float32 frames (len(in) must
// be >= numFrames*channels) from the producer. If the ring does not have
// enough free space, the oldest frames are dropped by advancing
// read_index (drop-oldest policy) and overrun_count is incremented by
// the number of frames dropped. Write always accepts every frame handed
// to it -- the return value is always numFrames -- since the whole point
// of drop-oldest is that the producer, a real-time OS audio callback,
// must never be made to wait or reject data.
//
// Producer-only: must not be called concurrently with another Write.
func (h *Handle) Write(in []float32, numFrames int) (accepted int, err error) {
	requested := numFrames
	capacity := h.hdr.capacityFrames()
	channels := h.hdr.channels()
	if uint32(numFrames) > capacity {
		// Only the most recent capacity frames can ever be retained;
		// drop the earlier part of this very call up front.
		dropped := uint32(numFrames) - capacity
		h.hdr.addOverrunCount(uint64(dropped))
		in = in[int(dropped)*int(channels):]
		numFrames = int(capacity)
	}

	writeIdx := h.hdr.writeIndex()
	readIdx := h.hdr.readIndex() // acquire: observe consumer's progress
	used := writeIdx - readIdx
	free := uint64(capacity) - used

	if uint64(numFrames) > free {
		overrun := uint64(numFrames) - free
		readIdx += overrun
		h.hdr.addOverrunCount(overrun)
	}

	bytesPerFrame := int(h.hdr.bytesPerFrame())
	format := h.hdr.format()
	for i := 0; i < numFrames; i++ {
		frameIdx := (writeIdx + uint64(i)) % uint64(capacity)
		dst := h.payload[int(frameIdx)*bytesPerFrame : (int(frameIdx)+1)*bytesPerFrame]
		for c := uint32(0); c < channels; c++ {
			sample := in[i*int(channels)+int(c)]
			off := int(c) * int(format.BytesPerSample())
			encodeSample(dst[off:], format, sample)
		}
	}

	writeIdx += uint64(numFrames)
	h.hdr.storeReadIndex(readIdx)  // release: make room visible before advancing write
	h.hdr.storeWriteIndex(writeIdx) // release: publish the new frames
	h.hdr.addTotalFramesWritten(uint64(numFrames))

	return requested, nil
}

// Read delivers up to numFrames interleaved float32 frames into out
// (len(out) must be >= numFrames*channels). If fewer than numFrames are
// available, the shortfall in out is zero-filled and underrun_count is
// incremented by the number of missing frames. Read never blocks.
//
// Consumer-only: must not be called concurrently with another Read.
func (h *Handle) Read(out []float32, numFrames int) (delivered int) {
	capacity := h.hdr.capacityFrames()
	channels := h.hdr.channels()

	writeIdx := h.hdr.writeIndex() // acquire: observe producer's progress
	readIdx := h.hdr.readIndex()
	available := writeIdx - readIdx
	if available > uint64(capacity) {
		available = uint64(capacity)
	}

	toRead := uint64(numFrames)
	if toRead > available {
		toRead = available
	}

	bytesPerFrame := int(h.hdr.bytesPerFrame())
	format := h.hdr.format()
	for i := uint64(0); i < toRead; i++ {
		frameIdx := (readIdx + i) % uint64(capacity)
		src := h.payload[int(frameIdx)*bytesPerFrame : (int(frameIdx)+1)*bytesPerFrame]
		for c := uint32(0); c < channels; c++ {
			off := int(c) * int(format.BytesPerSample())
			out[int(i)*int(channels)+int(c)] = decodeSample(src[off:], format)
		}
	}

	// Zero-fill any shortfall.
	for i := int(toRead) * int(channels); i < numFrames*int(channels) && i < len(out); i++ {
		out[i] = 0
	}

	if uint64(numFrames) > toRead {
		shortfall := uint64(numFrames) - toRead
		h.hdr.addUnderrunCount(shortfall)
	}

	readIdx += toRead
	h.hdr.storeReadIndex(readIdx) // release: free the slots we consumed
	h.hdr.addTotalFramesRead(toRead)

	return int(toRead)
}

// UpdateHeartbeatProducer bumps the producer's (driver) heartbeat
// counter. Wait-free; intended to be called at most once per second from
// the plug-in's IO thread, gated by wall clock.
func (h *Handle) UpdateHeartbeatProducer() { h.hdr.bumpDriverHeartbeat() }

// UpdateHeartbeatConsumer bumps the consumer's (host) heartbeat counter.
func (h *Handle) UpdateHeartbeatConsumer() { h.hdr.bumpHostHeartbeat() }

// DriverHeartbeat and HostHeartbeat expose the raw counters for health
// monitoring.
func (h *Handle) DriverHeartbeat() uint64 { return h.hdr.driverHeartbeat() }
func (h *Handle) HostHeartbeat() uint64   { return h.hdr.hostHeartbeat() }

// SetProducerConnected and SetConsumerConnected update the advisory
// connection flags.
func (h *Handle) SetProducerConnected(v bool) { h.hdr.setDriverConnected(v) }
func (h *Handle) SetConsumerConnected(v bool) { h.hdr.setHostConnected(v) }

func (h *Handle) ProducerConnected() bool { return h.hdr.driverConnected() }
func (h *Handle) ConsumerConnected() bool { return h.hdr.hostConnected() }

// NoteFormatChange increments format_change_counter; called by the
// producer whenever the upstream OS stream format changes and a new
// resampler must be installed.
func (h *Handle) NoteFormatChange() uint64 { return h.hdr.incFormatChangeCounter() }

// NoteFormatMismatch increments format_mismatch_count; called when an
// unrecoverable format conversion is attempted.
func (h *Handle) NoteFormatMismatch() uint64 { return h.hdr.incFormatMismatchCount() }

// CheckInvariants re-validates the header's monotonicity invariants,
// surfacing ErrCorrupt if violated. Intended for the health monitor.
func (h *Handle) CheckInvariants() error { return h.hdr.checkInvariants() }

// Stats is a point-in-time snapshot of a ring's health counters.
type Stats struct {
	WriteIndex          uint64
	ReadIndex            uint64
	TotalFramesWritten   uint64
	TotalFramesRead      uint64
	OverrunCount         uint64
	UnderrunCount        uint64
	FormatMismatchCount  uint64
	FormatChangeCounter  uint64
	DriverConnected      bool
	HostConnected        bool
	DriverHeartbeat      uint64
	HostHeartbeat        uint64
}

// Snapshot returns the current Stats for this ring.
func (h *Handle) Snapshot() Stats {
	return Stats{
		WriteIndex:          h.hdr.writeIndex(),
		ReadIndex:           h.hdr.readIndex(),
		TotalFramesWritten:  h.hdr.totalFramesWritten(),
		TotalFramesRead:     h.hdr.totalFramesRead(),
		OverrunCount:        h.hdr.overrunCount(),
		UnderrunCount:       h.hdr.underrunCount(),
		FormatMismatchCount: h.hdr.formatMismatchCount(),
		FormatChangeCounter: h.hdr.formatChangeCounter(),
		DriverConnected:     h.hdr.driverConnected(),
		HostConnected:       h.hdr.hostConnected(),
		DriverHeartbeat:     h.hdr.driverHeartbeat(),
		HostHeartbeat:       h.hdr.hostHeartbeat(),
	}
}

func (h *Handle) String() string {
	return fmt.Sprintf("ring(%s, %dHz, %dch, %s, cap=%d)", h.path, h.SampleRate(), h.Channels(), h.Format(), h.CapacityFrames())
}
