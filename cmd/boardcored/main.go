package main

import (
	"fmt"
	"os"

	"github.com/lexera/boardcore/cmd/boardcored/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
