package elgamal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"

	"github.com/ecopulse/aggregator/crypto/ecc"
)

// Sizes in bytes of a serialized Ciphertext.
const (
	sizeCoord      = 32
	sizePoint      = 2 * sizeCoord
	SizeCiphertext = 2 * sizePoint
)

// Ciphertext represents an ElGamal encrypted value with additive homomorphic
// properties. It wraps the two curve points of the cryptosystem.
type Ciphertext struct {
	C1 ecc.Point `json:"c1"`
	C2 ecc.Point `json:"c2"`
}

// NewCiphertext creates a zero Ciphertext on the same curve as the given
// point. The zero ciphertext is the additive identity: adding it to any other
// ciphertext leaves the latter unchanged.
func NewCiphertext(curve ecc.Point) *Ciphertext {
	return &Ciphertext{C1: curve.New(), C2: curve.New()}
}

// Encrypt encrypts a message with the given public key. The randomness k can
// be provided or nil to generate a fresh one.
func (z *Ciphertext) Encrypt(message *big.Int, publicKey ecc.Point, k *big.Int) (*Ciphertext, error) {
	var err error
	if k == nil {
		if k, err = RandK(); err != nil {
			return nil, fmt.Errorf("elgamal encryption failed: %w", err)
		}
	}
	c1, c2, err := EncryptWithK(publicKey, message, k)
	if err != nil {
		return nil, fmt.Errorf("elgamal encryption failed: %w", err)
	}
	z.C1 = c1
	z.C2 = c2
	return z, nil
}

// Add adds two Ciphertext and stores the result in z, which is also returned.
func (z *Ciphertext) Add(x, y *Ciphertext) *Ciphertext {
	z.C1.SafeAdd(x.C1, y.C1)
	z.C2.SafeAdd(x.C2, y.C2)
	return z
}

// Serialize returns a slice of SizeCiphertext bytes, representing C1.X, C1.Y,
// C2.X, C2.Y as fixed-width big-endian coordinates.
func (z *Ciphertext) Serialize() []byte {
	var buf bytes.Buffer
	c1x, c1y := z.C1.Point()
	c2x, c2y := z.C2.Point()
	for _, bi := range []*big.Int{c1x, c1y, c2x, c2y} {
		buf.Write(arbo.BigIntToBytes(sizeCoord, bi))
	}
	return buf.Bytes()
}

// Deserialize reconstructs a Ciphertext from a slice of SizeCiphertext bytes,
// the coordinate layout produced by Serialize. Coordinates that do not encode
// valid group elements are rejected.
func (z *Ciphertext) Deserialize(data []byte) error {
	if len(data) != SizeCiphertext {
		return fmt.Errorf("invalid input length: got %d bytes, expected %d bytes", len(data), SizeCiphertext)
	}
	readBigInt := func(offset int) *big.Int {
		return arbo.BytesToBigInt(data[offset : offset+sizeCoord])
	}
	c1, err := z.C1.SetPoint(readBigInt(0*sizeCoord), readBigInt(1*sizeCoord))
	if err != nil {
		return fmt.Errorf("invalid c1: %w", err)
	}
	c2, err := z.C2.SetPoint(readBigInt(2*sizeCoord), readBigInt(3*sizeCoord))
	if err != nil {
		return fmt.Errorf("invalid c2: %w", err)
	}
	z.C1, z.C2 = c1, c2
	return nil
}

// Marshal converts Ciphertext to a byte slice.
func (z *Ciphertext) Marshal() ([]byte, error) {
	return json.Marshal(z)
}

// Unmarshal populates Ciphertext from a byte slice.
func (z *Ciphertext) Unmarshal(data []byte) error {
	return json.Unmarshal(data, z)
}

// String returns a string representation of the Ciphertext.
func (z *Ciphertext) String() string {
	if z == nil || z.C1 == nil || z.C2 == nil {
		return "{C1: nil, C2: nil}"
	}
	return fmt.Sprintf("{C1: %s, C2: %s}", z.C1.String(), z.C2.String())
}
