// Command engrave turns an image into something resembling an engraving.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/soypat/engrave/internal/cli"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command tree and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := cli.Execute(ctx, args, stdout, stderr)
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*cli.ExitError); ok {
		fmt.Fprintln(stderr, exitErr.Message)
		return exitErr.Code
	}
	fmt.Fprintln(stderr, err)
	return cli.ExitFailure
}
