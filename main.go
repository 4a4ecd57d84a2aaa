package main

import (
	"os"

	"github.com/mattsolo1/grove-watch/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
