package main

import (
	"fmt"
	"os"

	"github.com/beam-cloud/runwatch/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
