package ethereum

import (
	"testing"

	qt "github.com/frankban/quicktest"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestSignRecoverVerify(t *testing.T) {
	c := qt.New(t)

	key, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	message := []byte("congestion=10 eco=6")
	signature, err := SignMessage(message, key)
	c.Assert(err, qt.IsNil)
	c.Assert(signature, qt.HasLen, SignatureLength)

	recovered, err := AddrFromSignature(message, signature)
	c.Assert(err, qt.IsNil)
	c.Assert(recovered, qt.Equals, addr)
	c.Assert(VerifySignature(message, signature, addr), qt.IsNil)

	// A different message recovers a different address.
	otherKey, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	c.Assert(VerifySignature(message, signature, ethcrypto.PubkeyToAddress(otherKey.PublicKey)),
		qt.ErrorMatches, "signature from .*")

	// Truncated signatures are rejected before recovery.
	_, err = AddrFromSignature(message, signature[:32])
	c.Assert(err, qt.ErrorMatches, "invalid signature length.*")
}
