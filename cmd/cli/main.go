package main

import (
	"os"

	"github.com/atelier-commerce/atelier/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
