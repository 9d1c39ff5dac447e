package main

import (
	"os"

	"github.com/guardhouse/guardhouse/cmd/guardhouse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
