package main

import (
	"os"

	"github.com/kuksa/vssbroker/cmd/vssbroker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
