package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ExPixel/godisasm/disasm"
)

// printListing writes one line per disasm.Line, columns aligned to
// measure's widths: address, raw bytes, mnemonic, operands, comment, then
// any attached source lines indented beneath.
func printListing(w io.Writer, listing disasm.Listing, measure disasm.Measure) {
	addrWidth := measure.MaxAddressWidthHex()
	bytesWidth := measure.MaxBytesWidthHex(1)

	for _, line := range listing.Lines {
		fmt.Fprintf(w, "%0*x  %-*s  %-*s %-*s",
			addrWidth, line.Address,
			bytesWidth, formatBytes(line.Bytes),
			measure.MaxMnemonicLen, line.Mnemonic,
			measure.MaxOperandsLen, line.Operands,
		)
		if line.Comment != "" {
			fmt.Fprintf(w, " ; %s", line.Comment)
		}
		fmt.Fprintln(w)

		for _, src := range line.SourceLines {
			fmt.Fprintf(w, "%*s  %s\n", addrWidth, "", src)
		}
	}
}

func formatBytes(raw []byte) string {
	parts := make([]string, len(raw))
	for i, b := range raw {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}
