package main

import (
	"os"

	"github.com/Fepozopo/halftone/pkg/cli"
)

func main() {
	if err := cli.Run(); err != nil {
		os.Exit(1)
	}
}
