// Package config models the disassembler's external interface: the
// executable path, the symbol query, the symbol-source-list policy, and
// optional sidecar-file overrides. Options is parsed by a manual argument
// walk in the style of the teacher's modalflag, rather than a flag-package
// or config-file library, since the surface is a handful of positional and
// named arguments and nothing more.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/symbol"
)

// Options is the fully parsed, not-yet-validated external interface.
type Options struct {
	ExecutablePath string
	Query          string

	// SourceToken is the raw symbol-source-list token: "auto", "all",
	// "debug", "obj", or one of the six SymbolSource singletons. Defaults to
	// "auto" when not supplied.
	SourceToken string

	// AutoThreshold overrides symbolindex.DefaultAutoThreshold when > 0.
	AutoThreshold int

	// PdbSidecar, when non-empty, replaces the PDB path the PE loader finds
	// through the executable's CodeView entry. DwarfSidecar is checked for
	// existence by Validate but is not read when loading: DWARF always comes
	// from the executable itself or, for Mach-O, the .dSYM bundle beside it.
	DwarfSidecar string
	PdbSidecar   string
}

// ParseArgs walks args (typically os.Args[1:]) in order: the first two
// unrecognised (non-flag) tokens are ExecutablePath and Query; flags of the
// form "-name=value" set SourceToken/AutoThreshold/DwarfSidecar/PdbSidecar.
// ParseArgs never touches the filesystem or checks argument validity beyond
// shape - that is Options.Validate's job.
func ParseArgs(args []string) (Options, error) {
	opts := Options{SourceToken: "auto"}

	positional := 0
	for _, arg := range args {
		name, value, isFlag := splitFlag(arg)
		if !isFlag {
			switch positional {
			case 0:
				opts.ExecutablePath = arg
			case 1:
				opts.Query = arg
			}
			positional++
			continue
		}

		switch name {
		case "symbols":
			opts.SourceToken = value
		case "dsym":
			opts.DwarfSidecar = value
		case "pdb":
			opts.PdbSidecar = value
		case "auto-threshold":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Options{}, curated.Errorf(curated.InvalidSourceToken, arg)
			}
			opts.AutoThreshold = n
		}
	}

	return opts, nil
}

// splitFlag recognises "-name=value" and "-name value" is not supported
// (every flag here takes an explicit value), returning ok=false for any
// argument that isn't of the former shape.
func splitFlag(arg string) (name, value string, ok bool) {
	if !strings.HasPrefix(arg, "-") {
		return "", "", false
	}
	body := strings.TrimPrefix(arg, "-")
	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		return "", "", false
	}
	return body[:eq], body[eq+1:], true
}

// Validate checks field presence, the source token's legality, and that any
// sidecar override path actually exists. It does not check ExecutablePath's
// existence via anything beyond os.Stat - opening/mapping it is the
// caller's job.
func (o Options) Validate() error {
	if o.ExecutablePath == "" {
		return curated.Errorf(curated.MissingExecutable)
	}
	if o.Query == "" {
		return curated.Errorf(curated.MissingQuery)
	}
	if _, err := os.Stat(o.ExecutablePath); err != nil {
		return curated.Errorf(curated.ExecutableNotFound, o.ExecutablePath)
	}
	if !validSourceToken(o.SourceToken) {
		return curated.Errorf(curated.InvalidSourceToken, o.SourceToken)
	}
	if o.DwarfSidecar != "" {
		if _, err := os.Stat(o.DwarfSidecar); err != nil {
			return curated.Errorf(curated.InvalidSidecarPath, o.DwarfSidecar)
		}
	}
	if o.PdbSidecar != "" {
		if _, err := os.Stat(o.PdbSidecar); err != nil {
			return curated.Errorf(curated.InvalidSidecarPath, o.PdbSidecar)
		}
	}
	return nil
}

func validSourceToken(token string) bool {
	switch token {
	case "auto", "all", "debug", "obj":
		return true
	default:
		_, ok := symbol.ParseSource(token)
		return ok
	}
}

// debugSources and objSources are the SymbolSource sets the "debug" and
// "obj" tokens (and the debug/object halves of "auto"/"all") expand to.
var debugSources = []symbol.Source{symbol.Dwarf, symbol.Pdb}
var objSources = []symbol.Source{symbol.Elf, symbol.Mach, symbol.Pe, symbol.Archive}

// Plan describes which emitters a loader should run, separating the
// sources that always run from the auto-fallback decision: "auto" can't be
// resolved until the debug sources have actually been loaded and their
// symbol count is known, so the fallback is expressed as a threshold rather
// than a fixed source list. See symbolindex.DefaultAutoThreshold.
type Plan struct {
	// Debug is the set of debug-info emitters (Dwarf, Pdb) to run.
	Debug []symbol.Source

	// Obj is the set of object-table emitters to run unconditionally. When
	// the source token is "auto", Obj is empty here and AutoThreshold is
	// non-zero instead: the caller runs every object-table emitter only if
	// the symbol count recovered from Debug falls below AutoThreshold.
	Obj []symbol.Source

	// AutoThreshold is > 0 only for the "auto" token, naming the symbol
	// count below which Obj should run as a fallback after Debug.
	AutoThreshold int
}

// Plan expands o.SourceToken into a Plan. o must already be valid (see
// Validate) - Plan does not re-check the token's legality.
func (o Options) Plan() Plan {
	threshold := o.AutoThreshold
	if threshold <= 0 {
		threshold = DefaultAutoThreshold
	}

	switch o.SourceToken {
	case "auto":
		return Plan{Debug: debugSources, AutoThreshold: threshold}
	case "all":
		return Plan{Debug: debugSources, Obj: objSources}
	case "debug":
		return Plan{Debug: debugSources}
	case "obj":
		return Plan{Obj: objSources}
	default:
		source, _ := symbol.ParseSource(o.SourceToken)
		if source.Priority() == symbol.Dwarf.Priority() {
			return Plan{Debug: []symbol.Source{source}}
		}
		return Plan{Obj: []symbol.Source{source}}
	}
}

// DefaultAutoThreshold mirrors symbolindex.DefaultAutoThreshold. It is
// restated here (rather than imported) to keep config free of a dependency
// on symbolindex, which in turn does not need to know anything about
// config; cmd/godisasm is the only place both meet.
const DefaultAutoThreshold = 128 * 1024
