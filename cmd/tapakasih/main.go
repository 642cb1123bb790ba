package main

import (
	"os"

	"github.com/paondev/tapakasih/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
