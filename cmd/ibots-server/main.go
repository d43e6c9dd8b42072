package main

import (
	"fmt"
	"os"

	"github.com/stake-plus/ibots/src/cli"
)

func main() {
	if err := cli.NewServerCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ibots-server:", err)
		os.Exit(1)
	}
}
