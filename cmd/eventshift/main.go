package main

import (
	"os"

	"github.com/shiftsec/eventshift/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
