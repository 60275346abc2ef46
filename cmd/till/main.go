// Command till prices carts and allocates serialized stock from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/till/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
