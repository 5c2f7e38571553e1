package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt wraps math/big.Int so that it marshals as a decimal string in both
// JSON and CBOR, keeping arbitrary-precision values readable on the wire.
type BigInt big.Int

// MathBigInt converts z to a *big.Int.
func (z *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(z)
}

// SetUint64 sets z to x and returns z.
func (z *BigInt) SetUint64(x uint64) *BigInt {
	return (*BigInt)(z.MathBigInt().SetUint64(x))
}

// String returns the decimal representation of z.
func (z *BigInt) String() string {
	return z.MathBigInt().String()
}

// MarshalJSON implements json.Marshaler.
func (z *BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + z.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (z *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if _, ok := z.MathBigInt().SetString(s, 10); !ok {
		return fmt.Errorf("invalid integer: %q", data)
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (z *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(z.String())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (z *BigInt) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, ok := z.MathBigInt().SetString(s, 10); !ok {
		return fmt.Errorf("invalid integer: %q", s)
	}
	return nil
}
