// Package archiveobj reads the common Unix thin-archive ("ar") container
// and recurses objfile.Detect/the per-format loaders into each member,
// retagging every recovered symbol as coming from an archive. A member
// whose own format isn't ELF/Mach/PE is reported with an UnsupportedError
// rather than aborting the whole archive.
package archiveobj

import (
	"strconv"
	"strings"

	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/logger"
	"github.com/ExPixel/godisasm/objfile"
	"github.com/ExPixel/godisasm/objfile/elfobj"
	"github.com/ExPixel/godisasm/objfile/machobj"
	"github.com/ExPixel/godisasm/objfile/peobj"
	"github.com/ExPixel/godisasm/symbol"
)

const globalHeader = "!<arch>\n"
const memberHeaderSize = 60

// Load walks every member of the thin archive in data, merging their
// sections and symbols (the latter retagged Archive) into one
// objfile.LoadedObject. Sections from different members can legitimately
// overlap in address space (static libraries link against no fixed image
// base), so AddrToOffset on the merged table is only meaningful when the
// caller already knows which member a query address belongs to; callers
// working with a single member should load it directly instead.
func Load(path string, data []byte) (*objfile.LoadedObject, error) {
	if len(data) < len(globalHeader) || string(data[:len(globalHeader)]) != globalHeader {
		return nil, curated.Errorf(curated.UnknownMagic, path)
	}

	out := &objfile.LoadedObject{Path: path}
	var sections []objfile.Section

	longNames, err := extractLongNameTable(data)
	if err != nil {
		return nil, err
	}

	off := len(globalHeader)
	for off+memberHeaderSize <= len(data) {
		name, size, nextOff, err := parseMemberHeader(data, off, longNames)
		if err != nil {
			return nil, err
		}

		memberData := data[nextOff : nextOff+size]
		off = nextOff + size
		if size%2 != 0 && off < len(data) {
			off++ // members are padded to an even boundary
		}

		if name == "/" || name == "//" || name == "/SYM64/" {
			continue // symbol/string lookup tables, not object members
		}

		kind := objfile.Detect(memberData)
		var loaded *objfile.LoadedObject
		switch kind {
		case objfile.KindElf:
			loaded, err = elfobj.Load(name, memberData)
		case objfile.KindMach:
			loaded, err = machobj.Load(name, memberData)
		case objfile.KindPe:
			loaded, err = peobj.Load(name, memberData)
		default:
			logger.Logf("archiveobj", "%v", curated.Errorf(curated.ArchiveMember, name))
			continue
		}
		if err != nil {
			logger.Logf("archiveobj", "skipping member %s: %v", name, err)
			continue
		}

		if out.Arch.Arch == objfile.ArchUnknown {
			out.Arch = loaded.Arch
		}
		for _, s := range loaded.Sections.All() {
			sections = append(sections, s)
		}
		for _, sym := range loaded.Symbols {
			out.Symbols = append(out.Symbols, sym.WithSource(symbol.Archive))
		}
	}

	out.Sections = objfile.NewSectionTable(sections)
	return out, nil
}

// extractLongNameTable reads the GNU extended-filename member ("//"), if
// present, so that "/<offset>" member names can be resolved.
func extractLongNameTable(data []byte) ([]byte, error) {
	off := len(globalHeader)
	for off+memberHeaderSize <= len(data) {
		header := data[off : off+memberHeaderSize]
		rawName := strings.TrimRight(string(header[0:16]), " ")
		size, err := parseHeaderSize(header)
		if err != nil {
			return nil, err
		}

		bodyOff := off + memberHeaderSize
		if rawName == "//" {
			if bodyOff+size > len(data) {
				return nil, curated.Errorf(curated.TruncatedHeader, "archive")
			}
			return data[bodyOff : bodyOff+size], nil
		}

		off = bodyOff + size
		if size%2 != 0 && off < len(data) {
			off++
		}
	}
	return nil, nil
}

func parseHeaderSize(header []byte) (int, error) {
	sizeField := strings.TrimSpace(string(header[48:58]))
	size, err := strconv.Atoi(sizeField)
	if err != nil || size < 0 {
		return 0, curated.Errorf(curated.TruncatedHeader, "archive")
	}
	return size, nil
}

// parseMemberHeader decodes the 60-byte member header at off, resolving GNU
// short ("name/") and long ("/<offset>") name encodings. It returns the
// member's name, its data size, and the file offset its data begins at.
func parseMemberHeader(data []byte, off int, longNames []byte) (name string, size, dataOff int, err error) {
	header := data[off : off+memberHeaderSize]
	rawName := string(header[0:16])

	size, err = parseHeaderSize(header)
	if err != nil {
		return "", 0, 0, err
	}
	dataOff = off + memberHeaderSize
	if dataOff+size > len(data) {
		return "", 0, 0, curated.Errorf(curated.TruncatedHeader, "archive")
	}

	trimmed := strings.TrimRight(rawName, " ")
	switch {
	case strings.HasPrefix(trimmed, "/") && trimmed != "/" && trimmed != "//":
		idx, convErr := strconv.Atoi(trimmed[1:])
		if convErr != nil || idx < 0 || idx >= len(longNames) {
			return "", 0, 0, curated.Errorf(curated.TruncatedHeader, "archive")
		}
		name = cStringUntil(longNames[idx:], "/\n")
	case strings.HasSuffix(trimmed, "/"):
		name = trimmed[:len(trimmed)-1]
	default:
		name = trimmed
	}

	return name, size, dataOff, nil
}

func cStringUntil(b []byte, terminator string) string {
	if i := strings.Index(string(b), terminator); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
