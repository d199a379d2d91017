package main

import (
	"github.com/ExPixel/godisasm/config"
	"github.com/ExPixel/godisasm/curated"
	"github.com/ExPixel/godisasm/disasm"
	"github.com/ExPixel/godisasm/dwarfconsumer"
	"github.com/ExPixel/godisasm/objfile"
	"github.com/ExPixel/godisasm/objfile/archiveobj"
	"github.com/ExPixel/godisasm/objfile/elfobj"
	"github.com/ExPixel/godisasm/objfile/machobj"
	"github.com/ExPixel/godisasm/objfile/peobj"
	"github.com/ExPixel/godisasm/pdbconsumer"
	"github.com/ExPixel/godisasm/sourceresolver"
	"github.com/ExPixel/godisasm/symbol"
	"github.com/ExPixel/godisasm/symbolindex"
)

// run performs the full open->index->disassemble pipeline for opts, which
// must already be validated.
func run(opts config.Options) (disasm.Listing, disasm.Measure, error) {
	data, err := openData(opts.ExecutablePath)
	if err != nil {
		return disasm.Listing{}, disasm.Measure{}, err
	}
	defer data.Close()

	loaded, err := loadObject(opts.ExecutablePath, data.AsBytes())
	if err != nil {
		return disasm.Listing{}, disasm.Measure{}, err
	}

	var dwarfC *dwarfconsumer.Consumer
	if loaded.DWARF != nil {
		dwarfC = dwarfconsumer.New(loaded.DWARF)
	}

	var pdbC *pdbconsumer.Consumer
	pdbPath := loaded.PDBPath
	if opts.PdbSidecar != "" {
		pdbPath = opts.PdbSidecar
	}
	if pdbPath != "" {
		pdbData, err := openData(pdbPath)
		if err == nil {
			defer pdbData.Close()
			pdbC, _ = pdbconsumer.New(pdbData.AsBytes())
		}
	}

	plan := opts.Plan()
	symbols := aggregateSymbols(loaded, dwarfC, pdbC, plan)
	index := symbolindex.New(symbols)

	target, ok := index.FuzzyFind(opts.Query)
	if !ok {
		return disasm.Listing{}, disasm.Measure{}, curated.Errorf(curated.QueryNoMatch, opts.Query)
	}

	codeView := data.Slice(int(target.FileOffset()), int(target.EndOffset()))
	defer codeView.Close()
	code := codeView.AsBytes()

	resolver := sourceresolver.New()
	defer resolver.Close()

	req := disasm.Request{
		Arch:     loaded.Arch.Arch,
		Code:     code,
		BaseAddr: target.Address(),
		Symbol:   target,
		Source:   resolver,
	}
	if dwarfC != nil {
		req.AddrToLine = func(addr uint64) []disasm.SourceLine {
			rows, ok := dwarfC.Addr2Line(addr)
			if !ok {
				return nil
			}
			lines := make([]disasm.SourceLine, len(rows))
			for i, row := range rows {
				lines[i] = disasm.SourceLine{Path: row.File, Line: row.Line}
			}
			return lines
		}
	}

	listing, err := disasm.Run(req, index)
	if err != nil {
		return disasm.Listing{}, disasm.Measure{}, err
	}

	return listing, disasm.MeasureListing(listing), nil
}

// loadObject dispatches to the per-format loader matching path's magic.
func loadObject(path string, data []byte) (*objfile.LoadedObject, error) {
	switch objfile.Detect(data) {
	case objfile.KindElf:
		return elfobj.Load(path, data)
	case objfile.KindMach:
		return machobj.Load(path, data)
	case objfile.KindPe:
		return peobj.Load(path, data)
	case objfile.KindArchive:
		return archiveobj.Load(path, data)
	default:
		return nil, curated.Errorf(curated.UnknownMagic, path)
	}
}

// aggregateSymbols merges the object loader's native symbols with whichever
// debug-info symbols plan.Debug names. Object symbols join the mix when
// plan.Obj names any object source, or, under the "auto" fallback, when the
// debug-symbol count is below plan.AutoThreshold (zero when the token wasn't
// "auto").
func aggregateSymbols(loaded *objfile.LoadedObject, dwarfC *dwarfconsumer.Consumer, pdbC *pdbconsumer.Consumer, plan config.Plan) []symbol.Symbol {
	var debugSymbols []symbol.Symbol
	for _, src := range plan.Debug {
		switch src {
		case symbol.Dwarf:
			if dwarfC == nil {
				continue
			}
			syms, err := dwarfC.LoadSymbols(loaded.Sections.AddrToOffset)
			if err == nil {
				debugSymbols = append(debugSymbols, syms...)
			}
		case symbol.Pdb:
			if pdbC == nil {
				continue
			}
			syms, err := pdbC.LoadSymbols(loaded.ImageBase)
			if err == nil {
				debugSymbols = append(debugSymbols, syms...)
			}
		}
	}

	includeObj := len(plan.Obj) > 0
	if plan.AutoThreshold > 0 && len(debugSymbols) < plan.AutoThreshold {
		includeObj = true
	}

	var objSymbols []symbol.Symbol
	if includeObj {
		allowed := planObjSources(plan)
		for _, s := range loaded.Symbols {
			if len(allowed) == 0 || allowed[s.Source()] {
				objSymbols = append(objSymbols, s)
			}
		}
	}

	return append(debugSymbols, objSymbols...)
}

// planObjSources builds a lookup set from plan.Obj. An empty plan.Obj paired
// with an auto-fallback inclusion means "every object source", since "auto"
// doesn't narrow which object-table sources apply - only whether they apply
// at all.
func planObjSources(plan config.Plan) map[symbol.Source]bool {
	if len(plan.Obj) == 0 {
		return nil
	}
	set := make(map[symbol.Source]bool, len(plan.Obj))
	for _, s := range plan.Obj {
		set[s] = true
	}
	return set
}
