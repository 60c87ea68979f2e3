// flyctl inspects flyweight argument keys and runs a demo interning server.
//
// Usage:
//
//	flyctl <command> [command options] [arguments]
//
// Commands:
//
//	key            print the canonical key of a JSON argument value
//	serve          run an HTTP server backed by a flyweight registry
//	help           show help
//
// Exit codes:
//
//	0: success
//	1: command failed
//	2: invalid arguments
//
// Examples:
//
//	flyctl key '{"size": 12, "family": "Inter"}'
//	flyctl key --pairs '"family"' '"Inter"' '"size"' '12.0'
//	flyctl serve --addr :8080 --config flyweight.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Set with -ldflags "-X main.Version=... -X main.GitCommit=..."
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:           "flyctl",
		Usage:          "flyweight key inspector and demo server",
		Version:        fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Commands:       createCommands(),
		DefaultCommand: "help",
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(args []string) int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "usage error: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
