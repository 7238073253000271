package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTruncatedObjectIDs is returned when an object id file has an odd
// number of bytes.
var ErrTruncatedObjectIDs = errors.New("truncated object id data")

// ReadObjectIDs reads a flat array of little endian uint16 object ids, in
// file order.
func ReadObjectIDs(r io.Reader) ([]uint16, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object ids: %w", err)
	}
	return ParseObjectIDs(data)
}

// ParseObjectIDs decodes a flat array of little endian uint16 object ids.
func ParseObjectIDs(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of ids", ErrTruncatedObjectIDs, len(data))
	}

	ids := make([]uint16, len(data)/2)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return ids, nil
}

// ReadObjectIDsFile reads an object id file from disk.
func ReadObjectIDsFile(path string) ([]uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading object id file: %w", err)
	}
	return ParseObjectIDs(data)
}

// WriteObjectIDs writes ids as a flat array of little endian uint16.
func WriteObjectIDs(w io.Writer, ids []uint16) error {
	bw := bufio.NewWriter(w)
	var b [2]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint16(b[:], id)
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
