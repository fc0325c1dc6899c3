package main

import (
	"fmt"
	"os"

	"go.olrik.dev/acp/cmd"
)

func main() {
	// If no command specified, default to status
	if len(os.Args) == 1 {
		os.Args = []string{os.Args[0], "status"}
	}

	root := cmd.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
