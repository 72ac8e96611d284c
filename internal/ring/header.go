package ring

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// ProtocolVersion is the magic value stamped into every ring's header at
// creation. Consumers refuse to bind to a segment whose header carries a
// different value. This implementation speaks only the v2 wire shape
// described by the spec (heartbeats, capabilities, rich counters); the
// v1 shape is not supported.
const ProtocolVersion uint32 = 0x52465632 // "RFV2"

// HeaderSize is the fixed byte size of the header region. The audio
// payload always begins at this offset, regardless of host struct
// packing, so the header is never represented as a native Go struct
// mapped directly onto the segment -- every field is read and written
// at an explicit byte offset via encoding/binary and sync/atomic.
const HeaderSize = 256

// Field byte offsets, matching the ring file format table exactly.
const (
	offProtocolVersion    = 0
	offHeaderSize         = 4
	offSampleRate         = 8
	offChannels           = 12
	offFormat             = 16
	offBytesPerSample     = 20
	offBytesPerFrame      = 24
	offRingCapacityFrames = 28
	offRingDurationMs     = 32
	offDriverCapabilities = 36
	offHostCapabilities   = 40
	offCreationTimestamp  = 44
	offFormatChangeCount  = 52
	offWriteIndex         = 60
	offReadIndex          = 68
	offTotalFramesWritten = 76
	offTotalFramesRead    = 84
	offOverrunCount       = 92
	offUnderrunCount      = 100
	offFormatMismatch     = 108
	offDriverConnected    = 116
	offHostConnected      = 120
	offDriverHeartbeat    = 124
	offHostHeartbeat      = 132
)

// header is a view over the first HeaderSize bytes of a mapped (or
// heap-backed) ring segment. All accessors operate directly on that
// backing memory so that both the producer and the consumer process,
// mapping the same bytes, observe each other's writes.
type header struct {
	buf []byte // len(buf) >= HeaderSize
}

func newHeaderView(buf []byte) header {
	if len(buf) < HeaderSize {
		panic("ring: buffer smaller than header size")
	}
	return header{buf: buf}
}

func (h header) u32At(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&h.buf[off]))
}

func (h header) u64At(off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&h.buf[off]))
}

// --- immutable fields, written once at creation ---

func (h header) protocolVersion() uint32 { return binary.LittleEndian.Uint32(h.buf[offProtocolVersion:]) }
func (h header) setProtocolVersion(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offProtocolVersion:], v)
}

func (h header) headerSize() uint32 { return binary.LittleEndian.Uint32(h.buf[offHeaderSize:]) }
func (h header) setHeaderSize(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offHeaderSize:], v)
}

func (h header) sampleRate() uint32 { return binary.LittleEndian.Uint32(h.buf[offSampleRate:]) }
func (h header) setSampleRate(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offSampleRate:], v)
}

func (h header) channels() uint32 { return binary.LittleEndian.Uint32(h.buf[offChannels:]) }
func (h header) setChannels(v uint32) { binary.LittleEndian.PutUint32(h.buf[offChannels:], v) }

func (h header) format() Format { return Format(binary.LittleEndian.Uint32(h.buf[offFormat:])) }
func (h header) setFormat(v Format) {
	binary.LittleEndian.PutUint32(h.buf[offFormat:], uint32(v))
}

func (h header) bytesPerSample() uint32 {
	return binary.LittleEndian.Uint32(h.buf[offBytesPerSample:])
}
func (h header) setBytesPerSample(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offBytesPerSample:], v)
}

func (h header) bytesPerFrame() uint32 {
	return binary.LittleEndian.Uint32(h.buf[offBytesPerFrame:])
}
func (h header) setBytesPerFrame(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offBytesPerFrame:], v)
}

func (h header) capacityFrames() uint32 {
	return binary.LittleEndian.Uint32(h.buf[offRingCapacityFrames:])
}
func (h header) setCapacityFrames(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offRingCapacityFrames:], v)
}

func (h header) durationMs() uint32 { return binary.LittleEndian.Uint32(h.buf[offRingDurationMs:]) }
func (h header) setDurationMs(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offRingDurationMs:], v)
}

func (h header) driverCapabilities() uint32 {
	return binary.LittleEndian.Uint32(h.buf[offDriverCapabilities:])
}
func (h header) setDriverCapabilities(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offDriverCapabilities:], v)
}

func (h header) hostCapabilities() uint32 {
	return binary.LittleEndian.Uint32(h.buf[offHostCapabilities:])
}
func (h header) setHostCapabilities(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offHostCapabilities:], v)
}

func (h header) creationTimestamp() int64 {
	return int64(binary.LittleEndian.Uint64(h.buf[offCreationTimestamp:]))
}
func (h header) setCreationTimestamp(v int64) {
	binary.LittleEndian.PutUint64(h.buf[offCreationTimestamp:], uint64(v))
}

// --- atomic counters and indices, accessed from both sides ---

func (h header) formatChangeCounter() uint64 { return atomic.LoadUint64(h.u64At(offFormatChangeCount)) }
func (h header) incFormatChangeCounter() uint64 {
	return atomic.AddUint64(h.u64At(offFormatChangeCount), 1)
}

// writeIndex and readIndex are monotonic 64-bit frame counters. The
// producer writes writeIndex with release semantics and reads readIndex
// with acquire semantics; the consumer is symmetric. sync/atomic's
// Load/Store/Add provide the necessary ordering. The fixed wire layout
// puts these fields at offsets that are not 8-byte aligned (write_index
// at 60); amd64 tolerates unaligned atomic access, stricter
// architectures may not.
func (h header) writeIndex() uint64      { return atomic.LoadUint64(h.u64At(offWriteIndex)) }
func (h header) storeWriteIndex(v uint64) { atomic.StoreUint64(h.u64At(offWriteIndex), v) }

func (h header) readIndex() uint64       { return atomic.LoadUint64(h.u64At(offReadIndex)) }
func (h header) storeReadIndex(v uint64) { atomic.StoreUint64(h.u64At(offReadIndex), v) }

func (h header) totalFramesWritten() uint64 { return atomic.LoadUint64(h.u64At(offTotalFramesWritten)) }
func (h header) addTotalFramesWritten(n uint64) {
	atomic.AddUint64(h.u64At(offTotalFramesWritten), n)
}

func (h header) totalFramesRead() uint64 { return atomic.LoadUint64(h.u64At(offTotalFramesRead)) }
func (h header) addTotalFramesRead(n uint64) {
	atomic.AddUint64(h.u64At(offTotalFramesRead), n)
}

func (h header) overrunCount() uint64      { return atomic.LoadUint64(h.u64At(offOverrunCount)) }
func (h header) addOverrunCount(n uint64)  { atomic.AddUint64(h.u64At(offOverrunCount), n) }
func (h header) underrunCount() uint64     { return atomic.LoadUint64(h.u64At(offUnderrunCount)) }
func (h header) addUnderrunCount(n uint64) { atomic.AddUint64(h.u64At(offUnderrunCount), n) }

func (h header) formatMismatchCount() uint64 { return atomic.LoadUint64(h.u64At(offFormatMismatch)) }
func (h header) incFormatMismatchCount() uint64 {
	return atomic.AddUint64(h.u64At(offFormatMismatch), 1)
}

// --- advisory, relaxed-atomic fields ---

func (h header) driverConnected() bool {
	return atomic.LoadUint32(h.u32At(offDriverConnected)) != 0
}
func (h header) setDriverConnected(v bool) {
	atomic.StoreUint32(h.u32At(offDriverConnected), boolToU32(v))
}

func (h header) hostConnected() bool {
	return atomic.LoadUint32(h.u32At(offHostConnected)) != 0
}
func (h header) setHostConnected(v bool) {
	atomic.StoreUint32(h.u32At(offHostConnected), boolToU32(v))
}

func (h header) driverHeartbeat() uint64 { return atomic.LoadUint64(h.u64At(offDriverHeartbeat)) }
func (h header) bumpDriverHeartbeat() uint64 {
	return atomic.AddUint64(h.u64At(offDriverHeartbeat), 1)
}

func (h header) hostHeartbeat() uint64 { return atomic.LoadUint64(h.u64At(offHostHeartbeat)) }
func (h header) bumpHostHeartbeat() uint64 {
	return atomic.AddUint64(h.u64At(offHostHeartbeat), 1)
}

func boolToU32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// checkInvariants validates the two header invariants that the spec
// says are never self-healed: write_index must never be behind
// read_index, and the outstanding frame count must never exceed
// capacity. A violation means the segment is corrupt and should surface
// to the health monitor for reconnection, not be patched in place.
func (h header) checkInvariants() error {
	w, r := h.writeIndex(), h.readIndex()
	if w < r {
		return ErrCorrupt
	}
	if w-r > uint64(h.capacityFrames()) {
		return ErrCorrupt
	}
	return nil
}
