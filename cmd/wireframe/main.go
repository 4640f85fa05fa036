// Command wireframe exercises the pkg/envelope wire codec: serve runs a
// relay gateway, bench drives load through dumps/loads, and archive
// records/replays a frame sequence to disk.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "bench":
		err = runBench(args)
	case "archive":
		err = runArchive(args)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "wireframe %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wireframe <serve|bench|archive> [flags]")
}
