// Package binarydata implements BinaryData, a ref-counted, memory-mapped
// view of a file with cheap, clamped sub-slicing. The mapping outlives every
// derived slice; bytes handed out by AsBytes never move for as long as any
// slice referencing them is alive, which is what lets the dwarf consumer
// read directly out of the mapping without copying.
package binarydata

import (
	"io"
	"sync"
	"sync/atomic"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/ExPixel/godisasm/curated"
)

// inner is the shared, ref-counted mapping. Every BinaryData sliced from a
// common ancestor shares one inner.
type inner struct {
	path string
	m    mmap.MMap
	file io.Closer
	refs int32
}

func (in *inner) release() {
	if atomic.AddInt32(&in.refs, -1) == 0 {
		in.m.Unmap()
		in.file.Close()
	}
}

// BinaryData is a contiguous byte range backed by a memory-mapped file.
type BinaryData struct {
	in     *inner
	start  int
	end    int
	cursor int

	mu sync.Mutex // guards cursor only
}

// Open memory-maps path read-only. The returned view spans the whole file.
func Open(path string) (*BinaryData, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, curated.Errorf(curated.OpenFailed, path, err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, curated.Errorf(curated.MmapFailed, path, err)
	}

	in := &inner{path: path, m: m, file: f, refs: 1}

	return &BinaryData{in: in, start: 0, end: len(m)}, nil
}

// Path is the path the mapping was opened from, as passed to Open.
func (b *BinaryData) Path() string {
	return b.in.path
}

// Len is the number of bytes in this view.
func (b *BinaryData) Len() int {
	return b.end - b.start
}

// AsBytes is a stable view over the whole slice: the returned slice's
// backing array does not move for as long as b (or any ancestor/descendant
// sharing its mapping) is alive.
func (b *BinaryData) AsBytes() []byte {
	return b.in.m[b.start:b.end]
}

// Slice produces a sub-view over [lo, hi) relative to the start of this
// view, clamped to this view's own bounds. The new view's cursor begins at
// its own start.
func (b *BinaryData) Slice(lo, hi int) *BinaryData {
	lo += b.start
	hi += b.start

	if lo < b.start {
		lo = b.start
	}
	if hi > b.end {
		hi = b.end
	}
	if hi < lo {
		hi = lo
	}

	atomic.AddInt32(&b.in.refs, 1)

	return &BinaryData{in: b.in, start: lo, end: hi, cursor: lo}
}

// Read performs a sequential read from the cursor, advancing it. It returns
// the number of bytes actually copied, which is 0 at the end of the view.
func (b *BinaryData) Read(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cursor >= b.end {
		return 0, io.EOF
	}

	n := copy(buf, b.in.m[b.cursor:b.end])
	b.cursor += n
	return n, nil
}

// SeekWhence mirrors io.Seeker's whence constants.
type SeekWhence int

const (
	SeekStart SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// Seek moves the read cursor. Out-of-range positions clamp to the view's
// bounds rather than erroring, and it returns the new cursor position
// relative to the start of the view.
func (b *BinaryData) Seek(offset int64, whence SeekWhence) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var base int
	switch whence {
	case SeekStart:
		base = b.start
	case SeekCurrent:
		base = b.cursor
	case SeekEnd:
		base = b.end
	}

	pos := base + int(offset)
	if pos < b.start {
		pos = b.start
	}
	if pos > b.end {
		pos = b.end
	}
	b.cursor = pos

	return int64(pos - b.start)
}

// Close releases this view's reference to the underlying mapping. The
// mapping itself is only unmapped once every derived BinaryData has been
// closed.
func (b *BinaryData) Close() {
	b.in.release()
}
