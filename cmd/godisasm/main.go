// Command godisasm loads an executable, resolves a symbol query against its
// aggregated symbol index, disassembles that one symbol, and prints the
// resulting listing.
package main

import (
	"fmt"
	"os"

	"github.com/ExPixel/godisasm/binarydata"
	"github.com/ExPixel/godisasm/config"
	"github.com/ExPixel/godisasm/logger"
)

func main() {
	opts, err := config.ParseArgs(os.Args[1:])
	if err == nil {
		err = opts.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	listing, measure, err := run(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Tail(os.Stderr, 20)
		os.Exit(1)
	}

	printListing(os.Stdout, listing, measure)
}

func openData(path string) (*binarydata.BinaryData, error) {
	return binarydata.Open(path)
}
