// Package image provides read-only, range-based access to raw media
// images. Nothing in this package opens a source for writing.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// Backend selects how an image file is read.
type Backend string

const (
	// BackendFile issues pread calls against an *os.File.
	BackendFile Backend = "file"
	// BackendMmap maps the whole image into memory.
	BackendMmap Backend = "mmap"
)

// ParseBackend validates a backend name. Empty selects BackendFile.
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case "", BackendFile:
		return BackendFile, nil
	case BackendMmap:
		return BackendMmap, nil
	default:
		return "", fmt.Errorf("unknown image backend %q (want file or mmap)", name)
	}
}

// IOError describes a failed or short read or write with the range that
// was involved.
type IOError struct {
	Op     string
	Path   string
	Offset int64
	Length int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s at offset %d (+%d bytes): %v", e.Op, e.Path, e.Offset, e.Length, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Image is an immutable byte sequence of known size.
type Image struct {
	path    string
	backend Backend
	r       io.ReaderAt
	size    int64
	closer  io.Closer
	info    os.FileInfo
}

// Open opens the image at path read-only using the given backend. Block
// devices report their size through a seek to the end.
func Open(path string, backend Backend) (*Image, error) {
	switch backend {
	case BackendMmap:
		m, err := mmap.Open(path)
		if err != nil {
			return nil, &IOError{Op: "open", Path: path, Err: err}
		}
		info, _ := os.Stat(path)
		return &Image{path: path, backend: backend, r: m, size: int64(m.Len()), closer: m, info: info}, nil
	case "", BackendFile:
		f, err := os.Open(path)
		if err != nil {
			return nil, &IOError{Op: "open", Path: path, Err: err}
		}
		size, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return nil, &IOError{Op: "seek", Path: path, Err: err}
		}
		info, _ := f.Stat()
		return &Image{path: path, backend: BackendFile, r: f, size: size, closer: f, info: info}, nil
	default:
		return nil, fmt.Errorf("unknown image backend %q", backend)
	}
}

// FromBytes wraps an in-memory buffer. The buffer must not be modified
// while the image is in use.
func FromBytes(name string, data []byte) *Image {
	return &Image{path: name, backend: "memory", r: bytes.NewReader(data), size: int64(len(data))}
}

// Close releases the underlying handle.
func (img *Image) Close() error {
	if img.closer == nil {
		return nil
	}
	return img.closer.Close()
}

// Path returns the path the image was opened from.
func (img *Image) Path() string {
	return img.path
}

// Backend returns the active read backend.
func (img *Image) Backend() Backend {
	return img.backend
}

// Size returns the image size in bytes.
func (img *Image) Size() int64 {
	return img.size
}

// SameFile reports whether path refers to the image's own file.
func (img *Image) SameFile(path string) bool {
	if img.info == nil {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(img.info, info)
}

// ReadAt fills p from offset off. Anything less than a full read is an
// *IOError wrapping io.ErrUnexpectedEOF.
func (img *Image) ReadAt(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > img.size {
		return &IOError{Op: "read", Path: img.path, Offset: off, Length: int64(len(p)), Err: errors.New("range outside image")}
	}
	n, err := img.r.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return &IOError{Op: "read", Path: img.path, Offset: off, Length: int64(len(p)), Err: err}
	}
	if n != len(p) {
		return &IOError{Op: "read", Path: img.path, Offset: off, Length: int64(len(p)), Err: io.ErrUnexpectedEOF}
	}
	return nil
}

// Read allocates and returns length bytes starting at off.
func (img *Image) Read(off, length int64) ([]byte, error) {
	buf := make([]byte, length)
	if err := img.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

// SectionReader returns a reader over [off, off+length).
func (img *Image) SectionReader(off, length int64) *io.SectionReader {
	return io.NewSectionReader(img.r, off, length)
}
