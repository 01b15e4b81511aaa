// Package main is the unitengine daemon entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/shinygold/unitengine/cmd/unitengine/command"
)

func main() {
	if err := command.NewRootCommand().GetCobraCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
