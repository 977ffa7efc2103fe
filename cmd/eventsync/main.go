package main

import (
	"fmt"
	"os"

	"github.com/sdtechevents/eventhub/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(cli.DefaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
