// Package curated wraps the plain Go error interface with a pattern-based
// identity, so that call sites across the object loaders, the DWARF/PDB
// consumers, and the disassembly pipeline can distinguish error cases
// without a parallel hierarchy of sentinel values or wrapped types.
//
// Errors are created with Errorf(), which takes a fmt-style pattern and its
// values and defers formatting until Error() is called:
//
//	return curated.Errorf(curated.UnknownMagic, path)
//
// messages.go collects this repository's pattern constants, one per
// distinguishable failure, grouped by the subsystem that raises them:
// object loading ("format: ..."), I/O ("io: ..."), per-unit decode
// ("dwarf: ...", "symbol: ...", "disasm: ..."), unsupported input
// ("unsupported: ..."), failed lookups ("query: ..."), and CLI/config
// validation ("config: ..."). KindOf(err) recovers which of those buckets a
// given error belongs to, derived from the pattern's leading prefix rather
// than tracked separately:
//
//	if curated.KindOf(err) == curated.KindUnsupported {
//		// archive member in an unrecognised format - log and skip it
//	}
//
// Is() reports whether an error was raised with a specific pattern:
//
//	loaded, err := elfobj.Load(path, data)
//	if curated.Is(err, curated.UnknownMagic) {
//		// not an ELF file - try the next format
//	}
//
// Has() is the same check but looks through every level of wrapping, for the
// case where a subsystem wraps an inner curated error in a pattern of its
// own ("format: %v" is the common shape across the object loaders):
//
//	wrapped := curated.Errorf("format: %v", curated.Errorf(curated.TruncatedHeader, "archive"))
//	curated.Has(wrapped, curated.TruncatedHeader) // true
//	curated.Is(wrapped, curated.TruncatedHeader)  // false - it's the outer pattern that matched
//
// Error() also collapses an adjacent duplicated segment, so that repeatedly
// wrapping an error at every call site ("object: %v" all the way up, say)
// doesn't repeat the same leading word at every level:
//
//	e := curated.Errorf(curated.TruncatedHeader, "archive")  // "format: truncated header in archive"
//	f := curated.Errorf("format: %v", e)                     // still "format: truncated header in archive"
//
// IsAny() answers whether an error came from this package at all, which in
// practice distinguishes an anticipated failure (bad input, missing symbol,
// malformed object) from an unanticipated one (a bug, or an os/io error this
// package didn't wrap).
package curated
