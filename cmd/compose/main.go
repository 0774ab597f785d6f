// Command compose composes, saves and submits laboratory service requests.
package main

import (
	"fmt"
	"os"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "compose:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
