package main

import (
	"fmt"
	"os"

	"ledgerhooks/cmd/ledgerhooks"
)

func main() {
	if err := ledgerhooks.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
