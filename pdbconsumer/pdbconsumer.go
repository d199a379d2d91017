// Package pdbconsumer reads function symbols out of a Microsoft Program
// Database (PDB) sidecar file: the MSF container, the DBI stream's module
// list, and each module's CodeView procedure records. No third-party PDB
// library exists anywhere in the retrieved pack, so this is a hand-rolled
// reader of the (publicly documented, stable-for-decades) MSF/DBI/CodeView
// wire formats, scoped to exactly what procedure-symbol recovery needs.
package pdbconsumer

import (
	"encoding/binary"
	"strings"

	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/logger"
	"github.com/ExPixel/godisasm/symbol"
)

var msfMagic = []byte("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")

const (
	superBlockSize = 56 // FileMagic[32] + 6 uint32 fields through BlockMapAddr

	streamDBI        = 3
	dbiHeaderSize    = 64
	moduleHeaderSize = 64 // fixed portion before the two NUL-terminated names

	sectionContribSize = 28

	// CodeView procedure record kinds [Microsoft PDB CVInfo.h].
	symGProc32 = 0x1110
	symLProc32 = 0x1107

	imageSectionHeaderSize = 40

	// index of the section-header-dump stream within the DBI optional debug
	// header substream's array of stream indices.
	dbgHeaderSectionHdrIndex = 5
	noStream                 = 0xffff
)

// Consumer wraps a parsed MSF container and the streams LoadSymbols needs.
type Consumer struct {
	blockSize uint32
	streams   [][]byte // stream index -> concatenated stream bytes
}

// New parses the MSF superblock and stream directory of a PDB file's raw
// bytes, assembling every stream's contents. It does not yet look at the DBI
// or module streams; that happens lazily in LoadSymbols.
func New(data []byte) (*Consumer, error) {
	if len(data) < superBlockSize || string(data[:len(msfMagic)]) != string(msfMagic) {
		return nil, curated.Errorf(curated.UnknownMagic, "pdb")
	}

	sb, err := parseSuperBlock(data)
	if err != nil {
		return nil, err
	}

	dirBytes, err := readDirectoryStream(data, sb)
	if err != nil {
		return nil, err
	}

	streams, err := splitStreams(data, sb, dirBytes)
	if err != nil {
		return nil, err
	}

	return &Consumer{blockSize: sb.blockSize, streams: streams}, nil
}

type superBlock struct {
	blockSize     uint32
	numBlocks     uint32
	numDirBytes   uint32
	blockMapAddr  uint32
}

func parseSuperBlock(data []byte) (superBlock, error) {
	le := binary.LittleEndian
	var sb superBlock
	off := len(msfMagic)
	sb.blockSize = le.Uint32(data[off:])
	// FreeBlockMapBlock at off+4 is unused here.
	sb.numBlocks = le.Uint32(data[off+8:])
	sb.numDirBytes = le.Uint32(data[off+12:])
	// Unknown/reserved field at off+16.
	sb.blockMapAddr = le.Uint32(data[off+20:])
	if sb.blockSize == 0 {
		return sb, curated.Errorf(curated.PdbMalformed, "zero block size")
	}
	return sb, nil
}

func blockAt(data []byte, sb superBlock, block uint32) []byte {
	start := uint64(block) * uint64(sb.blockSize)
	end := start + uint64(sb.blockSize)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	if start > end {
		return nil
	}
	return data[start:end]
}

// readDirectoryStream reassembles the stream directory stream itself. The
// list of blocks making up the directory is read from the single block at
// BlockMapAddr; this assumes that list fits in one block, true for any
// directory up to (BlockSize/4)*BlockSize bytes (4MB at the common 4096
// block size), far beyond what a disassembler-sized PDB needs.
func readDirectoryStream(data []byte, sb superBlock) ([]byte, error) {
	numDirBlocks := ceilDiv(sb.numDirBytes, sb.blockSize)
	blockNumList := blockAt(data, sb, sb.blockMapAddr)
	if uint32(len(blockNumList)) < numDirBlocks*4 {
		return nil, curated.Errorf(curated.PdbMalformed, "truncated block map")
	}

	le := binary.LittleEndian
	out := make([]byte, 0, sb.numDirBytes)
	for i := uint32(0); i < numDirBlocks; i++ {
		block := le.Uint32(blockNumList[i*4:])
		out = append(out, blockAt(data, sb, block)...)
	}
	if uint32(len(out)) < sb.numDirBytes {
		return nil, curated.Errorf(curated.PdbMalformed, "truncated stream directory")
	}
	return out[:sb.numDirBytes], nil
}

// splitStreams reads the stream directory's layout (stream count, sizes,
// block lists) and reassembles each stream's bytes in turn.
func splitStreams(data []byte, sb superBlock, dir []byte) ([][]byte, error) {
	le := binary.LittleEndian
	if len(dir) < 4 {
		return nil, curated.Errorf(curated.PdbMalformed, "empty stream directory")
	}
	numStreams := le.Uint32(dir)
	off := 4

	sizes := make([]uint32, numStreams)
	for i := range sizes {
		if off+4 > len(dir) {
			return nil, curated.Errorf(curated.PdbMalformed, "truncated stream size table")
		}
		sizes[i] = le.Uint32(dir[off:])
		off += 4
	}

	streams := make([][]byte, numStreams)
	for i, size := range sizes {
		if size == 0xffffffff {
			streams[i] = nil
			continue
		}
		numBlocks := ceilDiv(size, sb.blockSize)
		buf := make([]byte, 0, size)
		for b := uint32(0); b < numBlocks; b++ {
			if off+4 > len(dir) {
				return nil, curated.Errorf(curated.PdbMalformed, "truncated block list")
			}
			block := le.Uint32(dir[off:])
			off += 4
			buf = append(buf, blockAt(data, sb, block)...)
		}
		if uint32(len(buf)) < size {
			return nil, curated.Errorf(curated.PdbMalformed, "truncated stream contents")
		}
		streams[i] = buf[:size]
	}
	return streams, nil
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (c *Consumer) stream(i int) []byte {
	if i < 0 || i >= len(c.streams) {
		return nil
	}
	return c.streams[i]
}

// LoadSymbols walks the DBI stream's module list and scans every module's
// symbol stream for GPROC32/LPROC32 procedure records, converting each
// (section, offset) into a virtual address via the PDB's own copy of the
// original image's section headers (the "section header dump" optional
// debug stream), then adding imageBase the same way the original CLI adds
// the image's load address.
func (c *Consumer) LoadSymbols(imageBase uint64) ([]symbol.Symbol, error) {
	dbi := c.stream(streamDBI)
	if len(dbi) < dbiHeaderSize {
		return nil, curated.Errorf(curated.PdbMalformed, "missing or truncated DBI stream")
	}

	le := binary.LittleEndian
	modInfoSize := le.Uint32(dbi[24:]) // ModInfoSize
	sections, err := c.sectionHeaders(dbi)
	if err != nil {
		logger.Logf("pdbconsumer", "no section headers available, procedures cannot be located and are dropped: %v", err)
	}

	modData := dbi[dbiHeaderSize:]
	if uint32(len(modData)) < modInfoSize {
		return nil, curated.Errorf(curated.PdbMalformed, "truncated module info substream")
	}
	modData = modData[:modInfoSize]

	var out []symbol.Symbol
	for off := 0; off+moduleHeaderSize <= len(modData); {
		symStream := int(le.Uint16(modData[off+4+sectionContribSize+2:]))
		rest := modData[off+moduleHeaderSize:]
		name, n1 := cString(rest)
		_, n2 := cString(rest[n1:])
		entryLen := moduleHeaderSize + n1 + n2
		entryLen = align4(entryLen)
		if entryLen <= 0 || off+entryLen > len(modData) {
			break
		}
		off += entryLen

		if symStream == noStream {
			continue
		}
		syms, err := c.loadSymbolsFromModule(symStream, sections, imageBase)
		if err != nil {
			logger.Logf("pdbconsumer", "skipping module %s: %v", name, err)
			continue
		}
		out = append(out, syms...)
	}
	return out, nil
}

type imageSectionHeader struct {
	virtualAddress   uint32
	pointerToRawData uint32
}

// sectionHeaders reads the PDB's embedded copy of the original image's
// section headers out of the DBI optional debug header substream.
func (c *Consumer) sectionHeaders(dbi []byte) ([]imageSectionHeader, error) {
	le := binary.LittleEndian
	modInfoSize := le.Uint32(dbi[24:])
	secContribSize := le.Uint32(dbi[28:])
	secMapSize := le.Uint32(dbi[32:])
	srcInfoSize := le.Uint32(dbi[36:])
	typeServerMapSize := le.Uint32(dbi[40:])
	optDbgHeaderSize := le.Uint32(dbi[48:])

	dbgOff := dbiHeaderSize + modInfoSize + secContribSize + secMapSize + srcInfoSize + typeServerMapSize
	dbgHeader := dbi[dbgOff:]
	if uint32(len(dbgHeader)) < optDbgHeaderSize {
		return nil, curated.Errorf(curated.PdbMalformed, "truncated optional debug header substream")
	}
	dbgHeader = dbgHeader[:optDbgHeaderSize]

	idx := dbgHeaderSectionHdrIndex * 2
	if idx+2 > len(dbgHeader) {
		return nil, curated.Errorf(curated.PdbMalformed, "no section header stream recorded")
	}
	streamIdx := le.Uint16(dbgHeader[idx:])
	if streamIdx == noStream {
		return nil, curated.Errorf(curated.PdbMalformed, "no section header stream recorded")
	}

	raw := c.stream(int(streamIdx))
	count := len(raw) / imageSectionHeaderSize
	out := make([]imageSectionHeader, count)
	for i := 0; i < count; i++ {
		rec := raw[i*imageSectionHeaderSize:]
		out[i] = imageSectionHeader{
			virtualAddress:   le.Uint32(rec[12:]),
			pointerToRawData: le.Uint32(rec[20:]),
		}
	}
	return out, nil
}

// loadSymbolsFromModule scans one module's CodeView symbol stream for
// procedure records. The stream begins with a 4-byte signature (the CodeView
// format version) followed by a sequence of length-prefixed records.
func (c *Consumer) loadSymbolsFromModule(streamIdx int, sections []imageSectionHeader, imageBase uint64) ([]symbol.Symbol, error) {
	data := c.stream(streamIdx)
	if len(data) < 4 {
		return nil, nil
	}
	le := binary.LittleEndian
	data = data[4:] // CodeView signature

	var out []symbol.Symbol
	for off := 0; off+2 <= len(data); {
		recLen := int(le.Uint16(data[off:]))
		if recLen < 2 || off+2+recLen > len(data) {
			break
		}
		rec := data[off+2 : off+2+recLen]
		kind := le.Uint16(rec)

		if kind == symGProc32 || kind == symLProc32 {
			if sym, ok := parseProcRecord(rec, sections, imageBase); ok {
				out = append(out, sym)
			}
		}

		off += 2 + recLen
	}
	return out, nil
}

// parseProcRecord decodes a PROCSYM32 record body (pParent, pEnd, pNext,
// length, DbgStart, DbgEnd, typeIndex, offset, segment, flags, name).
func parseProcRecord(rec []byte, sections []imageSectionHeader, imageBase uint64) (symbol.Symbol, bool) {
	// kind(2) pParent(4) pEnd(4) pNext(4) len(4) DbgStart(4) DbgEnd(4) typeIndex(4) offset(4) segment(2) flags(1)
	const fixedFields = 2 + 4*8 + 2 + 1
	if len(rec) < fixedFields+1 {
		return symbol.Symbol{}, false
	}

	le := binary.LittleEndian
	length := le.Uint32(rec[2+4*3:])
	offset := le.Uint32(rec[2+4*7:])
	segment := le.Uint16(rec[2+4*7+4:])
	name, _ := cString(rec[fixedFields:])

	if segment == 0 || int(segment) > len(sections) {
		return symbol.Symbol{}, false
	}
	if name == "" {
		return symbol.Symbol{}, false
	}

	sect := sections[segment-1]
	address := uint64(sect.virtualAddress) + uint64(offset) + imageBase
	fileOffset := uint64(sect.pointerToRawData) + uint64(offset)

	return symbol.NewUnmangled(name, address, fileOffset, uint64(length), symbol.Pdb), true
}

// cString reads a NUL-terminated string from b, returning it and the number
// of bytes consumed including the terminator.
func cString(b []byte) (string, int) {
	i := strings.IndexByte(string(b), 0)
	if i < 0 {
		return string(b), len(b)
	}
	return string(b[:i]), i + 1
}

func align4(n int) int {
	return (n + 3) &^ 3
}
