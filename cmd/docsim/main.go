package main

import (
	"os"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cli"
)

func main() {
	if err := cli.BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
