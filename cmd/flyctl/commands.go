package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/vnykmshr/flyweight-go/pkg/argkey"
	"github.com/vnykmshr/flyweight-go/pkg/flyweight"
)

const (
	defaultAddr            = ":8080"
	defaultShutdownTimeout = 5 * time.Second
)

// usageError marks invalid command-line input
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		createKeyCommand(),
		createServeCommand(),
	}
}

func createKeyCommand() *cli.Command {
	return &cli.Command{
		Name:      "key",
		Aliases:   []string{"k"},
		Usage:     "print the canonical key of a JSON argument value",
		ArgsUsage: "<json> | --pairs <name-json> <value-json> ...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "pairs",
				Aliases: []string{"p"},
				Usage:   "read arguments as alternating name/value JSON documents",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return cmdKey(cmd.Root().Writer, cmd.Args().Slice(), cmd.Bool("pairs"))
		},
	}
}

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run an HTTP server backed by a flyweight registry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "listen address",
				Value:   defaultAddr,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON cache configuration file",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdServe(ctx, cmd.String("addr"), cmd.String("config"))
		},
	}
}

// cmdKey prints the key for docs
func cmdKey(w io.Writer, docs []string, pairs bool) error {
	key, err := encodeArgs(docs, pairs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, key)
	return err
}

// encodeArgs decodes each JSON document and returns the canonical key.
// Without pairs exactly one document is expected.
func encodeArgs(docs []string, pairs bool) (string, error) {
	if !pairs && len(docs) != 1 {
		return "", usagef("key expects exactly one JSON document, got %d", len(docs))
	}

	values := make([]any, 0, len(docs))
	for i, doc := range docs {
		v, err := argkey.FromJSON([]byte(doc))
		if err != nil {
			return "", usagef("argument %d: %v", i+1, err)
		}
		values = append(values, v)
	}

	var arg any
	if pairs {
		m, err := argkey.Normalize(values...)
		if err != nil {
			return "", usagef("%v", err)
		}
		arg = m
	} else {
		arg = values[0]
	}

	key, err := argkey.Encode(arg)
	if errors.Is(err, argkey.ErrUnsupportedArgument) {
		return "", usagef("%v", err)
	}
	return key, err
}

// cmdServe runs the demo server until ctx is cancelled
func cmdServe(ctx context.Context, addr, configPath string) error {
	srv, err := newServer(configPath)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := srv.httpServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	srv.logger.Info("Serving", flyweight.F("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// setupSignalHandler cancels on the first signal and exits on the second
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
