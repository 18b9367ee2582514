// Command vizgen turns natural-language algorithm descriptions into
// rendered animations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/vizgen/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "vizgen: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
