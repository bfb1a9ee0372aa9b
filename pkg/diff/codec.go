package diff

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Version is the current wire format version.  Any change to the entry
// encoding requires a bump; older versions are not decoded.
const Version byte = 2

var magic = [7]byte{'B', 'O', 'B', 'D', 'I', 'F', 'F'}

var (
	ErrInvalidMagic    = errors.New("invalid magic")
	ErrVersionMismatch = errors.New("version mismatch")
)

// entryWire is the stable on-wire form of an Entry.
type entryWire struct {
	Kind  uint8  `cbor:"1,keyasint"`
	Path  string `cbor:"2,keyasint"`
	State uint8  `cbor:"3,keyasint,omitempty"`
	Data  []byte `cbor:"4,keyasint,omitempty"`
	Exec  *bool  `cbor:"5,keyasint,omitempty"`
}

// Serialize frames the diff as magic || version || zstd(entries).
func (d *DirDiff) Serialize() ([]byte, error) {
	wires := make([]entryWire, 0, len(d.Entries))
	for _, e := range d.Entries {
		w := entryWire{
			Kind:  uint8(e.Kind),
			Path:  e.Path,
			State: uint8(e.State),
			Data:  e.Data,
		}
		if e.Flags != nil {
			exec := e.Flags.Executable
			w.Exec = &exec
		}
		wires = append(wires, w)
	}

	plain, err := cbor.Marshal(wires)
	if err != nil {
		return nil, fmt.Errorf("encoding diff entries: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(9)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	out := make([]byte, 0, len(magic)+1)
	out = append(out, magic[:]...)
	out = append(out, Version)
	return enc.EncodeAll(plain, out), nil
}

// Deserialize parses bytes produced by Serialize.  The magic prefix and
// version byte are checked before anything is decompressed.
func Deserialize(serialized []byte) (*DirDiff, error) {
	if len(serialized) < len(magic)+1 || !bytes.Equal(serialized[:len(magic)], magic[:]) {
		return nil, ErrInvalidMagic
	}
	if serialized[len(magic)] != Version {
		return nil, ErrVersionMismatch
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	plain, err := dec.DecodeAll(serialized[len(magic)+1:], nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	var wires []entryWire
	if err := cbor.Unmarshal(plain, &wires); err != nil {
		return nil, fmt.Errorf("decoding diff entries: %w", err)
	}

	d := &DirDiff{}
	for _, w := range wires {
		if err := validPath(w.Path); err != nil {
			return nil, err
		}
		e := Entry{
			Kind:  Kind(w.Kind),
			Path:  w.Path,
			State: State(w.State),
			Data:  w.Data,
		}
		if w.Exec != nil {
			e.Flags = &Flags{Executable: *w.Exec}
		}
		d.Entries = append(d.Entries, e)
	}
	return d, nil
}

func validPath(rel string) error {
	if rel == "" || strings.HasPrefix(rel, "/") {
		return fmt.Errorf("invalid entry path %q", rel)
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return fmt.Errorf("invalid entry path %q", rel)
		}
	}
	return nil
}
