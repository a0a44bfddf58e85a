package main

import (
	"os"

	"github.com/vidflow-dev/vidflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
