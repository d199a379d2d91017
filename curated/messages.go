package curated

// error messages, grouped by the subsystem that raises them. the grouping
// mirrors the error taxonomy of IoError/FormatError/DecodeError/
// UnsupportedError/QueryError/ConfigError.
const (
	// io
	OpenFailed = "io: cannot open %s: %v"
	MmapFailed = "io: cannot map %s: %v"

	// format (fatal)
	UnknownMagic     = "format: unrecognised object magic in %s"
	TruncatedHeader  = "format: truncated header in %s"
	InconsistentSect = "format: inconsistent section reference in %s: %v"
	PdbMalformed     = "format: malformed PDB stream: %v"

	// decode (non-fatal, routed to logger instead of propagated in most call
	// sites; kept here for the cases that do need to surface as an error)
	DwarfUnitDecode   = "dwarf: failed to decode compilation unit: %v"
	SymbolNameDecode  = "symbol: failed to resolve name: %v"
	InstructionDecode = "disasm: failed to decode instruction at 0x%x: %v"

	// unsupported
	UnknownArch     = "unsupported: unknown architecture"
	ArchiveMember   = "unsupported: archive member %s is not a recognised object format"
	UnknownObjectFn = "unsupported: %v"

	// query
	QueryNoMatch = "query: no symbol matches %q"

	// config
	InvalidSourceToken = "config: invalid symbol source %q"
	InvalidSidecarPath = "config: sidecar path does not exist: %s"
	MissingExecutable  = "config: missing executable path"
	MissingQuery       = "config: missing query string"
	ExecutableNotFound = "config: executable does not exist: %s"
)
