package main

import (
	"os"

	shambacmder "github.com/shamba-ai/shamba/cmd/shamba"
)

func main() {
	cmd := shambacmder.NewShambaCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
