package elgamal

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/ecopulse/aggregator/crypto/ecc/curves"
)

func TestGenerateKey(t *testing.T) {
	curve := curves.New(curves.CurveTypeBN254)

	publicKey, privateKey, err := GenerateKey(curve)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, publicKey, qt.Not(qt.IsNil))
	qt.Assert(t, privateKey, qt.Not(qt.IsNil))

	// Check if publicKey = privateKey * G
	testPoint := curve.New()
	testPoint.SetGenerator()
	testPoint.ScalarMult(testPoint, privateKey)
	qt.Assert(t, testPoint.Equal(publicKey), qt.IsTrue)
}

func TestEncryptDecrypt(t *testing.T) {
	for _, curveType := range []string{curves.CurveTypeBN254, curves.CurveTypeBabyJubJub} {
		t.Run(curveType, func(t *testing.T) {
			curve := curves.New(curveType)
			publicKey, privateKey, err := GenerateKey(curve)
			qt.Assert(t, err, qt.IsNil)

			maxMessage := uint64(1000)

			for _, m := range []uint64{0, 1, 42, 999} {
				msg := big.NewInt(int64(m))
				c1, c2, k, err := Encrypt(publicKey, msg)
				qt.Assert(t, err, qt.IsNil)
				qt.Assert(t, k, qt.Not(qt.IsNil))

				M, recoveredMsg, err := Decrypt(publicKey, privateKey, c1, c2, maxMessage)
				qt.Assert(t, err, qt.IsNil)
				qt.Assert(t, recoveredMsg.String(), qt.DeepEquals, msg.String())

				// Check M = m * G
				testPoint := curve.New()
				testPoint.SetGenerator()
				testPoint.ScalarMult(testPoint, msg)
				qt.Assert(t, testPoint.Equal(M), qt.IsTrue)
			}
		})
	}
}

func TestHomomorphicAddition(t *testing.T) {
	curve := curves.New(curves.CurveTypeBN254)
	publicKey, privateKey, err := GenerateKey(curve)
	qt.Assert(t, err, qt.IsNil)

	a := NewCiphertext(curve)
	_, err = a.Encrypt(big.NewInt(17), publicKey, nil)
	qt.Assert(t, err, qt.IsNil)
	b := NewCiphertext(curve)
	_, err = b.Encrypt(big.NewInt(25), publicKey, nil)
	qt.Assert(t, err, qt.IsNil)

	sum := NewCiphertext(curve)
	sum.Add(a, b)

	_, msg, err := Decrypt(publicKey, privateKey, sum.C1, sum.C2, 1000)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, msg.Uint64(), qt.Equals, uint64(42))

	// Adding the zero ciphertext changes nothing.
	same := NewCiphertext(curve)
	same.Add(sum, NewCiphertext(curve))
	_, msg, err = Decrypt(publicKey, privateKey, same.C1, same.C2, 1000)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, msg.Uint64(), qt.Equals, uint64(42))
}

func TestBabyStepGiantStepBounds(t *testing.T) {
	curve := curves.New(curves.CurveTypeBN254)
	G := curve.New()
	G.SetGenerator()

	// Exact upper bound is still found.
	M := curve.New()
	M.ScalarBaseMult(big.NewInt(100))
	x, err := BabyStepGiantStep(M, G, 100)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, x.Uint64(), qt.Equals, uint64(100))

	// Out of bounds fails instead of looping forever.
	M.ScalarBaseMult(big.NewInt(100_000))
	_, err = BabyStepGiantStep(M, G, 100)
	qt.Assert(t, err, qt.Not(qt.IsNil))
}
