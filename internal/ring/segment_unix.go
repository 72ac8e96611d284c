//go:build unix

package ring

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mmapSegment backs a ring with a memory-mapped regular file living on
// the target OS's temp or shared-memory filesystem (e.g. /dev/shm on
// Linux). This is the real cross-process transport: the plug-in process
// and the host process each open and map the same path independently,
// so writes made by one are visible to the other without any shared
// allocator or IPC call beyond the initial mmap.
type mmapSegment struct {
	file *os.File
	data []byte
}

// createOrOpenSegment creates path if it doesn't exist (sizing it to
// size bytes) or opens it if it does, then maps it read-write. truncated
// reports whether the file was newly created (and therefore needs its
// header initialized by the caller).
func createOrOpenSegment(path string, size int64) (seg *mmapSegment, truncated bool, err error) {
	flags := os.O_RDWR
	f, err := os.OpenFile(path, flags, 0o644)
	if os.IsNotExist(err) {
		f, err = os.OpenFile(path, flags|os.O_CREATE|os.O_EXCL, 0o644)
		truncated = true
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}

	if truncated {
		if err := f.Truncate(size); err != nil {
			f.Close()
			os.Remove(path)
			return nil, false, fmt.Errorf("%w: truncate %s: %v", ErrIO, path, err)
		}
	} else {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, false, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
		}
		if info.Size() < size {
			f.Close()
			return nil, false, fmt.Errorf("%w: %s is smaller than expected segment size", ErrIO, path)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		if truncated {
			os.Remove(path)
		}
		return nil, false, fmt.Errorf("%w: mmap %s: %v", ErrIO, path, err)
	}

	return &mmapSegment{file: f, data: data}, truncated, nil
}

func (s *mmapSegment) bytes() []byte { return s.data }

func (s *mmapSegment) close() error {
	var err error
	if s.data != nil {
		err = unix.Munmap(s.data)
		s.data = nil
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	return err
}
