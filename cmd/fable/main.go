package main

import (
	"os"

	"github.com/calebsage/fable/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
