// Package aggregator provides the homomorphic accumulation engine consumed by
// the protocol. Handles are serialized ElGamal ciphertexts; folding two
// handles is elliptic curve point addition, so accumulation is commutative
// and associative and never touches plaintext.
package aggregator

import (
	"fmt"
	"math/big"

	"github.com/ecopulse/aggregator/crypto/ecc"
	"github.com/ecopulse/aggregator/crypto/elgamal"
	"github.com/ecopulse/aggregator/types"
)

// Engine implements the protocol's AggregationEngine over a configured curve.
type Engine struct {
	curve ecc.Point
}

// NewEngine creates an Engine operating on the curve of the given point.
func NewEngine(curve ecc.Point) *Engine {
	return &Engine{curve: curve}
}

// Accumulate folds delta into acc and returns the new accumulator handle. An
// empty acc acts as the additive identity, so the first contribution becomes
// the accumulator as-is.
func (e *Engine) Accumulate(acc, delta types.HexBytes) (types.HexBytes, error) {
	d := elgamal.NewCiphertext(e.curve)
	if err := d.Deserialize(delta); err != nil {
		return nil, fmt.Errorf("invalid delta handle: %w", err)
	}
	if len(acc) == 0 {
		return append(types.HexBytes{}, delta...), nil
	}
	a := elgamal.NewCiphertext(e.curve)
	if err := a.Deserialize(acc); err != nil {
		return nil, fmt.Errorf("invalid accumulator handle: %w", err)
	}
	sum := elgamal.NewCiphertext(e.curve)
	sum.Add(a, d)
	return sum.Serialize(), nil
}

// IsInitialized reports whether the handle deserializes into a ciphertext on
// the engine's curve.
func (e *Engine) IsInitialized(handle types.HexBytes) bool {
	if len(handle) != elgamal.SizeCiphertext {
		return false
	}
	c := elgamal.NewCiphertext(e.curve)
	return c.Deserialize(handle) == nil
}

// EncryptMeasurement is a client-side helper that encrypts a scalar
// measurement under the given public key and returns its handle.
func EncryptMeasurement(publicKey ecc.Point, value uint64) (types.HexBytes, error) {
	c := elgamal.NewCiphertext(publicKey)
	if _, err := c.Encrypt(new(big.Int).SetUint64(value), publicKey, nil); err != nil {
		return nil, err
	}
	return c.Serialize(), nil
}
