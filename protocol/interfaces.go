package protocol

import (
	"math/big"

	"github.com/ecopulse/aggregator/types"
)

// AggregationEngine is the opaque homomorphic accumulation capability
// consumed by the protocol. Handles are serialized ciphertexts the protocol
// never inspects; the engine must be commutative and associative so that
// submission order never affects the final revealed total. An empty
// accumulator handle acts as the additive identity.
type AggregationEngine interface {
	// Accumulate folds delta into acc and returns the new accumulator
	// handle.
	Accumulate(acc, delta types.HexBytes) (types.HexBytes, error)
	// IsInitialized reports whether the handle is a well-formed
	// ciphertext the engine can operate on.
	IsInitialized(handle types.HexBytes) bool
}

// DecryptionOracle is the asynchronous decryption capability. RequestDecryption
// returns immediately with an opaque request identifier; the cleartexts and
// proof are delivered later through the protocol callback entry point by
// whatever actor operates the oracle.
type DecryptionOracle interface {
	// RequestDecryption submits the frozen ciphertext handles for
	// decryption and returns the oracle-assigned request identifier.
	RequestDecryption(handles []types.HexBytes) (types.HexBytes, error)
	// Verify checks the decryption proof delivered with the callback
	// against the request identifier and the claimed cleartexts.
	Verify(requestID types.HexBytes, cleartexts []*big.Int, proof types.HexBytes) error
}
