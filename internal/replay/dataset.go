package replay

import (
	"errors"
	"fmt"
	"os"

	"github.com/0x5487/panoptes/protocol"
)

var ErrEmptyDataset = errors.New("replay: no complete record in file")

// Dataset is a headerless concatenation of wire records held in memory.
type Dataset struct {
	data []byte
	// Trailing is the size of an incomplete record at the end of the file. It is ignored.
	Trailing int
}

// NewDataset wraps raw record bytes.
func NewDataset(data []byte) *Dataset {
	n := len(data) / protocol.RecordSize * protocol.RecordSize
	return &Dataset{
		data:     data[:n],
		Trailing: len(data) - n,
	}
}

// LoadFile reads every record of path into memory.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: load %s: %w", path, err)
	}

	ds := NewDataset(data)
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrEmptyDataset, path, len(data))
	}
	return ds, nil
}

// Len returns the number of complete records.
func (d *Dataset) Len() int {
	return len(d.data) / protocol.RecordSize
}

// Record returns the raw bytes of record i. The slice aliases the dataset.
func (d *Dataset) Record(i int) []byte {
	off := i * protocol.RecordSize
	return d.data[off : off+protocol.RecordSize]
}

// Message decodes record i.
func (d *Dataset) Message(i int) (protocol.WireMessage, error) {
	return protocol.Decode(d.Record(i))
}
