// Package ethereum provides keccak hashing and ECDSA signature helpers on the
// secp256k1 curve. The decryption oracle signs its results with an ethereum
// key, and measurement submitters authenticate by signature recovery.
package ethereum

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length in bytes of a recoverable ECDSA signature.
const SignatureLength = 65

// HashRaw computes the keccak256 hash of the given data.
func HashRaw(data []byte) []byte {
	return crypto.Keccak256(data)
}

// SignMessage signs the keccak256 hash of the message with the given private
// key, returning a 65-byte recoverable signature.
func SignMessage(message []byte, privKey *ecdsa.PrivateKey) ([]byte, error) {
	signature, err := crypto.Sign(HashRaw(message), privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return signature, nil
}

// AddrFromSignature recovers the signer address from a message and its
// recoverable signature.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	pubKey, err := crypto.SigToPub(HashRaw(message), signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifySignature checks that the signature over message was produced by the
// key behind the expected address.
func VerifySignature(message, signature []byte, expected common.Address) error {
	addr, err := AddrFromSignature(message, signature)
	if err != nil {
		return err
	}
	if addr != expected {
		return fmt.Errorf("signature from %s, expected %s", addr.Hex(), expected.Hex())
	}
	return nil
}
