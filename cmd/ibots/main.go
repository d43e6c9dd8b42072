package main

import (
	"os"

	"github.com/stake-plus/ibots/src/cli"
)

func main() {
	if err := cli.NewClientCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
