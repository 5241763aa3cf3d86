package main

import (
	"os"

	"github.com/matt-wil/masterblog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
