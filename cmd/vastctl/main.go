package main

import (
	"os"

	"github.com/vastctl/vastctl/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
