// Command cloudlogin signs in to the cloud platform from a terminal and
// prints the issued tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jeremyhahn/go-cloudlogin/pkg/login"
)

const (
	exitSuccess = 0
	exitError   = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, newRootOptions()))
}

func run(args []string, stdout, stderr io.Writer, opts *rootOptions) int {
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		var stageErr *login.StageError
		if errors.As(err, &stageErr) {
			fmt.Fprintln(stderr, stageErr.Error())
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitError
	}
	return exitSuccess
}
