// Command replay sends a recorded message file to the engine, one record per
// datagram, restamping every record with its send time.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/0x5487/panoptes/internal/config"
	"github.com/0x5487/panoptes/internal/logging"
	"github.com/0x5487/panoptes/internal/replay"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stderr))
}

func run(args []string, stdin io.Reader, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: replay <data_file>")
		return 2
	}

	cfg, _, err := config.Load(os.Getenv("PANOPTES_CONFIG"))
	if err != nil {
		fmt.Fprintf(stderr, "replay: %v\n", err)
		return 1
	}
	logger, _, syncLog := logging.New(cfg.Log)
	defer func() { _ = syncLog() }()

	ds, err := replay.LoadFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "replay: %v\n", err)
		return 1
	}
	if ds.Trailing > 0 {
		logger.Warn("ignoring incomplete trailing record", "file", args[0], "bytes", ds.Trailing)
	}
	logger.Info("dataset loaded", "file", args[0], "records", ds.Len())

	opts := []replay.Option{
		replay.WithLogger(logger),
		replay.WithEndOfStream(cfg.Replay.EndOfStream),
	}
	if cfg.Replay.Confirm {
		opts = append(opts, replay.WithConfirm(stdin, stderr))
	}

	s, err := replay.Dial(cfg.Replay.Target, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "replay: %v\n", err)
		return 1
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := s.Send(ctx, ds); err != nil {
		fmt.Fprintf(stderr, "replay: %v\n", err)
		return 1
	}
	return 0
}
