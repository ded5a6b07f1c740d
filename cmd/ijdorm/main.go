// Command ijdorm builds, inspects and runs parameterized queries and
// validates records against rule specs.
package main

import (
	"os"

	"github.com/PseudoDevs/IamJohnDevORM/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
