package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a byte slice that marshals as a 0x-prefixed hexadecimal string
// in JSON. It is used for opaque binary values that cross the API boundary,
// such as ciphertext handles, request identifiers and state hashes.
type HexBytes []byte

// String returns the 0x-prefixed hexadecimal representation of b.
func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// SetString decodes a hexadecimal string, with or without the 0x prefix,
// into b.
func (b *HexBytes) SetString(s string) error {
	s = strings.TrimPrefix(s, "0x")
	data, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = data
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0] = '"'
	enc[1] = '0'
	enc[2] = 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	return b.SetString(string(data[1 : len(data)-1]))
}
