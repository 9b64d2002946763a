package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/0x5487/panoptes/protocol"
)

// DefaultDataPath is where the generator writes when no path is given.
const DefaultDataPath = "data/messages.bin"

// GenerateOptions describes a synthetic stream of adds. Order i gets id
// FirstID+i, price StartPrice+i*PriceStep and timestamp StartTime+i*TimeStep.
type GenerateOptions struct {
	Count      int
	StartTime  int64 // ns since midnight
	TimeStep   int64
	FirstID    uint64
	StartPrice int64
	PriceStep  int64
	Size       int32
	Side       protocol.Side
}

// DefaultGenerateOptions returns 1000 bids from 150.0000 up, one tick apart,
// starting at 09:30:00.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Count:      1000,
		StartTime:  34_200_000_000_000,
		TimeStep:   10_000,
		FirstID:    1000,
		StartPrice: 1_500_000,
		PriceStep:  1,
		Size:       100,
		Side:       protocol.SideBid,
	}
}

// Generate writes opts.Count add records to w.
func Generate(w io.Writer, opts GenerateOptions) (int, error) {
	bw := bufio.NewWriter(w)
	buf := make([]byte, protocol.RecordSize)

	for i := 0; i < opts.Count; i++ {
		msg := protocol.WireMessage{
			Timestamp: opts.StartTime + int64(i)*opts.TimeStep,
			OrderID:   opts.FirstID + uint64(i),
			Price:     opts.StartPrice + int64(i)*opts.PriceStep,
			Size:      opts.Size,
			Event:     protocol.EventAdd,
			Side:      opts.Side,
		}
		if _, err := bw.Write(protocol.Encode(buf, msg)); err != nil {
			return i, fmt.Errorf("replay: generate record %d: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return opts.Count, fmt.Errorf("replay: generate: %w", err)
	}
	return opts.Count, nil
}

// GenerateFile writes the records to path, creating its directory.
func GenerateFile(path string, opts GenerateOptions) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("replay: generate: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("replay: generate: %w", err)
	}

	n, err := Generate(f, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("replay: generate: %w", cerr)
	}
	return n, err
}
