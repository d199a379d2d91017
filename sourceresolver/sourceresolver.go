// Package sourceresolver attaches source-file line text to disassembly
// output, on demand. A path that doesn't exist is cached as a permanent
// miss; a path that does is memory-mapped once and kept open for the
// lifetime of the Resolver, with its newline-offset table extended lazily
// as higher line numbers are requested.
package sourceresolver

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/ExPixel/godisasm/curated"
)

// Request names one source line to resolve.
type Request struct {
	Path string
	Line int // one-based
}

// Resolver caches one entry per path across calls to Resolve/LoadLines.
type Resolver struct {
	cache map[string]*fileLines
}

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{cache: make(map[string]*fileLines)}
}

// Close unmaps every file this Resolver opened. The Resolver must not be
// used afterwards.
func (r *Resolver) Close() error {
	var firstErr error
	for path, entry := range r.cache {
		if entry == nil {
			continue
		}
		if err := entry.mapping.Unmap(); err != nil && firstErr == nil {
			firstErr = curated.Errorf(curated.OpenFailed, path, err)
		}
	}
	return firstErr
}

// Resolve returns the text of path's line-th line (one-based). ok is false
// if path does not exist, or if path has fewer than line lines; neither
// case is an error.
func (r *Resolver) Resolve(path string, line int) (text string, ok bool, err error) {
	entry, cached := r.cache[path]
	if !cached {
		entry, err = r.open(path)
		if err != nil {
			return "", false, err
		}
	}
	if entry == nil {
		return "", false, nil
	}
	text, ok = entry.line(line)
	return text, ok, nil
}

// LoadLines resolves every request in order, appending each hit's text to
// out. Misses (missing path, or a line past end of file) are silently
// skipped, matching the batch attach behaviour DisasmPipeline wants: a
// symbol whose source cannot be found simply carries no source lines.
func (r *Resolver) LoadLines(requests []Request, out *[]string) error {
	for _, req := range requests {
		text, ok, err := r.Resolve(req.Path, req.Line)
		if err != nil {
			return err
		}
		if ok {
			*out = append(*out, text)
		}
	}
	return nil
}

func (r *Resolver) open(path string) (*fileLines, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.cache[path] = nil
			return nil, nil
		}
		return nil, curated.Errorf(curated.OpenFailed, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, curated.Errorf(curated.OpenFailed, path, err)
	}

	// mmap-go rejects zero-length files; an empty source file simply has no
	// lines to resolve, so treat it like a cache hit with nothing in it.
	if info.Size() == 0 {
		entry := &fileLines{}
		r.cache[path] = entry
		return entry, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, curated.Errorf(curated.MmapFailed, path, err)
	}
	entry := &fileLines{mapping: m}
	r.cache[path] = entry
	return entry, nil
}

// fileLines is the per-path cache entry: a read-only mapping plus a lazily
// extended vector of newline end-offsets.
type fileLines struct {
	mapping mmap.MMap
	offsets []uint32
	current int
}

// line returns the text of the lineNum-th line (one-based), extending the
// offset table only as far as lineNum requires.
func (fl *fileLines) line(lineNum int) (string, bool) {
	if lineNum <= 0 {
		return "", false
	}
	index := lineNum - 1

	for len(fl.offsets) <= index && fl.current < len(fl.mapping) {
		fl.nextLine()
	}
	if index >= len(fl.offsets) {
		return "", false
	}

	end := int(fl.offsets[index])
	start := 0
	if index > 0 {
		start = int(fl.offsets[index-1])
	}

	// The offset lands one byte past the newline for every line but the
	// last, which may run to EOF with no trailing newline.
	if end > start && fl.mapping[end-1] == '\n' {
		end--
	}

	return string(fl.mapping[start:end]), true
}

// nextLine scans from current to the next newline (or EOF) and records the
// offset one byte past it.
func (fl *fileLines) nextLine() {
	for fl.current < len(fl.mapping) {
		if fl.mapping[fl.current] == '\n' {
			fl.current++
			break
		}
		fl.current++
	}
	fl.offsets = append(fl.offsets, uint32(fl.current))
}
