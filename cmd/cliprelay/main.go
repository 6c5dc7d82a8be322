// cliprelay records speech as alternating clips, transcribes them and keeps
// a rolling translation.
package main

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/cliprelay/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cliprelay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return cli.NewRootCmd(cli.NewDependencies()).Execute()
}
