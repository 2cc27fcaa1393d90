package main

import (
	"os"

	"github.com/lalith-99/familyhub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
