package main

import (
	"os"

	"github.com/mindcare/guardian/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
