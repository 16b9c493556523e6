package main

import (
	"os"

	"github.com/gitpan/cpanmetagen/cmd/cpanmetagen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
