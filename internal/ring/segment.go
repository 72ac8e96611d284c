package ring

// segment is the backing store for one ring: HeaderSize bytes of header
// followed by the audio payload. create_or_open maps (or allocates) one
// per ring; both the producer and consumer process open the same path
// and end up viewing the same bytes, which is what makes the SPSC
// transport cross-process without a shared allocator.
type segment interface {
	// bytes returns the full mapped region, header followed by payload.
	bytes() []byte
	// close unmaps (or releases) the segment. Safe to call once.
	close() error
}

// segmentSize returns the total byte size of a segment for the given
// payload capacity, i.e. HeaderSize plus the audio region.
func segmentSize(capacityFrames, bytesPerFrame uint32) int64 {
	return int64(HeaderSize) + int64(capacityFrames)*int64(bytesPerFrame)
}
