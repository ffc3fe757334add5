package main

import (
	"os"

	"github.com/certexam/certexam-backend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
