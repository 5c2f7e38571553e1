package dkg

import (
	"fmt"
	"math/big"

	"github.com/ecopulse/aggregator/crypto/ecc"
	"github.com/ecopulse/aggregator/crypto/elgamal"
)

// ComputePartialDecryption computes the partial decryption of C1 using the
// participant's private share.
func (p *Participant) ComputePartialDecryption(c1 ecc.Point) ecc.Point {
	si := c1.New()
	si.ScalarMult(c1, p.PrivateShare)
	return si
}

// CombinePartialDecryptions combines partial decryptions from a quorum of
// participants to recover the message scalar, bounded by maxMessage.
func CombinePartialDecryptions(c2 ecc.Point, partialDecryptions map[int]ecc.Point, participants []int, maxMessage uint64) (*big.Int, error) {
	lagrangeCoeffs, err := computeLagrangeCoefficients(participants, c2.Order())
	if err != nil {
		return nil, fmt.Errorf("failed to compute Lagrange coefficients: %w", err)
	}

	// Sum up the partial decryptions weighted by Lagrange coefficients.
	s := c2.New()
	for _, id := range participants {
		pd, ok := partialDecryptions[id]
		if !ok {
			return nil, fmt.Errorf("missing partial decryption from participant %d", id)
		}
		term := s.New()
		term.ScalarMult(pd, lagrangeCoeffs[id])
		s.Add(s, term)
	}
	// M = C2 - s
	s.Neg(s)
	m := c2.New()
	m.Add(c2, s)

	G := c2.New()
	G.SetGenerator()
	message, err := elgamal.BabyStepGiantStep(m, G, maxMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message: %v", err)
	}
	return message, nil
}

func computeLagrangeCoefficients(participants []int, mod *big.Int) (map[int]*big.Int, error) {
	coeffs := make(map[int]*big.Int)
	for _, i := range participants {
		numerator := big.NewInt(1)
		denominator := big.NewInt(1)
		for _, j := range participants {
			if i == j {
				continue
			}
			tempNum := big.NewInt(int64(-j))
			tempNum.Mod(tempNum, mod)
			numerator.Mul(numerator, tempNum)
			numerator.Mod(numerator, mod)

			tempDen := big.NewInt(int64(i - j))
			tempDen.Mod(tempDen, mod)
			denominator.Mul(denominator, tempDen)
			denominator.Mod(denominator, mod)
		}
		denominatorInv := new(big.Int).ModInverse(denominator, mod)
		if denominatorInv == nil {
			return nil, fmt.Errorf("modular inverse does not exist for denominator %s modulo %s", denominator.String(), mod.String())
		}
		coeff := new(big.Int).Mul(numerator, denominatorInv)
		coeff.Mod(coeff, mod)
		coeffs[i] = coeff
	}
	return coeffs, nil
}
