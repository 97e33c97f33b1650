// Command stratalog compiles, queries and tests Datalog programs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/stratalog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
