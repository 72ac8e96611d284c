//go:build !unix

package ring

import (
	"fmt"
	"os"
)

// mmapSegment is the non-unix fallback: it still backs the ring with a
// regular file on disk (so createOrOpen's create/open semantics match
// the unix build), but keeps the live view in a heap buffer synced to
// the file on close rather than relying on a platform mmap call. This
// keeps development and CI green on non-unix hosts; production RadioForm
// targets macOS and Linux, where segment_unix.go's real mmap is used.
type mmapSegment struct {
	file *os.File
	data []byte
}

func createOrOpenSegment(path string, size int64) (seg *mmapSegment, truncated bool, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if os.IsNotExist(err) {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		truncated = true
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}

	data := make([]byte, size)
	if !truncated {
		if _, err := f.ReadAt(data, 0); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
		}
	} else {
		if err := f.Truncate(size); err != nil {
			f.Close()
			os.Remove(path)
			return nil, false, fmt.Errorf("%w: truncate %s: %v", ErrIO, path, err)
		}
	}

	return &mmapSegment{file: f, data: data}, truncated, nil
}

func (s *mmapSegment) bytes() []byte { return s.data }

func (s *mmapSegment) close() error {
	var err error
	if s.file != nil {
		if _, werr := s.file.WriteAt(s.data, 0); werr != nil {
			err = werr
		}
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	return err
}
