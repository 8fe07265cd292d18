package main

import (
	"os"

	"github.com/sfarHD14/cmdstanpy/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
