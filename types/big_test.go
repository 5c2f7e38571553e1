package types

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
)

// bigIntEquals is qt.DeepEquals with access to BigInt's unexported fields,
// which go-cmp otherwise refuses to compare.
var bigIntEquals = qt.CmpEquals(cmp.AllowUnexported(BigInt{}))

func TestBigMarshalUnmarshalJSON(t *testing.T) {
	c := qt.New(t)
	bi := (*BigInt)(big.NewInt(1234567890))
	jsonBigInt := map[string]*BigInt{
		"bi": bi,
	}
	bBigInt, err := json.Marshal(jsonBigInt)
	c.Assert(err, qt.IsNil)

	var unmarshaled map[string]*BigInt
	c.Assert(json.Unmarshal(bBigInt, &unmarshaled), qt.IsNil)
	c.Assert(unmarshaled["bi"], bigIntEquals, bi)
}

func TestBigMarshalUnmarshalCBOR(t *testing.T) {
	c := qt.New(t)
	bi := (*BigInt)(big.NewInt(1234567890))
	cborBigInt := map[string]*BigInt{
		"bi": bi,
	}
	bBigInt, err := cbor.Marshal(cborBigInt)
	c.Assert(err, qt.IsNil)

	var unmarshaled map[string]*BigInt
	c.Assert(cbor.Unmarshal(bBigInt, &unmarshaled), qt.IsNil)
	c.Assert(unmarshaled["bi"], bigIntEquals, bi)
}

func TestHexBytesJSON(t *testing.T) {
	c := qt.New(t)

	hb := HexBytes{0xde, 0xad, 0xbe, 0xef}
	data, err := json.Marshal(hb)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `"0xdeadbeef"`)

	var decoded HexBytes
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded, qt.DeepEquals, hb)

	// The 0x prefix is optional on input.
	c.Assert(json.Unmarshal([]byte(`"deadbeef"`), &decoded), qt.IsNil)
	c.Assert(decoded, qt.DeepEquals, hb)

	c.Assert(json.Unmarshal([]byte(`"zz"`), &decoded), qt.Not(qt.IsNil))
	c.Assert(json.Unmarshal([]byte(`42`), &decoded), qt.Not(qt.IsNil))
}

func TestHexBytesSetString(t *testing.T) {
	c := qt.New(t)

	var hb HexBytes
	c.Assert(hb.SetString("0x0102"), qt.IsNil)
	c.Assert(hb, qt.DeepEquals, HexBytes{1, 2})
	c.Assert(hb.String(), qt.Equals, "0x0102")
}
