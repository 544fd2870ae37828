package main

import (
	"fmt"
	"os"

	"indexwatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "indexwatch: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
