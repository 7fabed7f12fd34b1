package main

import (
	"os"

	"backtestd/cmd/backtestd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
