package main

import (
	"os"

	aigcmder "github.com/aigolabs/aig/cmd/aig"
)

func main() {
	cmd := aigcmder.NewAigCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
