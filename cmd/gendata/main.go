// Command gendata writes a file of synthetic add-order records for replay.
package main

import (
	"fmt"
	"os"

	"github.com/0x5487/panoptes/internal/replay"
)

func main() {
	path := replay.DefaultDataPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	n, err := replay.GenerateFile(path, replay.DefaultGenerateOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "gendata: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d messages in %s\n", n, path)
}
