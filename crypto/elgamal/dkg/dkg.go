// Package dkg implements a Feldman verifiable secret sharing scheme used to
// operate the decryption oracle in threshold mode: the oracle private key is
// never held by a single party, and decryption combines partial results from
// a quorum of participants.
package dkg

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ecopulse/aggregator/crypto/ecc"
)

// Participant represents a participant in the DKG protocol.
type Participant struct {
	ID             int
	Threshold      int
	Participants   []int
	SecretCoeffs   []*big.Int
	PublicCoeffs   []ecc.Point
	SecretShares   map[int]*big.Int
	ReceivedShares map[int]*big.Int
	PrivateShare   *big.Int
	PublicKey      ecc.Point
	CurvePoint     ecc.Point
}

// NewParticipant initializes a new participant on the given curve.
func NewParticipant(id, threshold int, participants []int, curvePoint ecc.Point) *Participant {
	return &Participant{
		ID:             id,
		Threshold:      threshold,
		Participants:   participants,
		SecretShares:   make(map[int]*big.Int),
		ReceivedShares: make(map[int]*big.Int),
		PrivateShare:   new(big.Int),
		CurvePoint:     curvePoint,
	}
}

// GenerateSecretPolynomial generates the random secret polynomial of degree
// threshold-1 along with the public commitments to its coefficients.
func (p *Participant) GenerateSecretPolynomial() error {
	degree := p.Threshold - 1
	for i := 0; i <= degree; i++ {
		coeff, err := rand.Int(rand.Reader, p.CurvePoint.Order())
		if err != nil {
			return fmt.Errorf("failed to generate polynomial coefficient: %w", err)
		}
		p.SecretCoeffs = append(p.SecretCoeffs, coeff)

		commitment := p.CurvePoint.New()
		commitment.ScalarBaseMult(coeff)
		p.PublicCoeffs = append(p.PublicCoeffs, commitment)
	}
	return nil
}

// ComputeShares evaluates the secret polynomial at every participant ID,
// producing the shares to distribute.
func (p *Participant) ComputeShares() {
	for _, pid := range p.Participants {
		p.SecretShares[pid] = p.evaluatePolynomial(big.NewInt(int64(pid)))
	}
}

func (p *Participant) evaluatePolynomial(x *big.Int) *big.Int {
	result := big.NewInt(0)
	xPower := big.NewInt(1)
	order := p.CurvePoint.Order()
	for _, coeff := range p.SecretCoeffs {
		term := new(big.Int).Mul(coeff, xPower)
		term.Mod(term, order)
		result.Add(result, term)
		result.Mod(result, order)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, order)
	}
	return result
}

// ReceiveShare verifies a share received from another participant against the
// sender's public commitments and stores it.
func (p *Participant) ReceiveShare(fromID int, share *big.Int, publicCoeffs []ecc.Point) error {
	if !p.verifyShare(share, publicCoeffs) {
		return fmt.Errorf("invalid share from participant %d", fromID)
	}
	p.ReceivedShares[fromID] = share
	return nil
}

func (p *Participant) verifyShare(share *big.Int, publicCoeffs []ecc.Point) bool {
	// lhs = share * G
	lhs := p.CurvePoint.New()
	lhs.ScalarBaseMult(share)

	// rhs = sum_i publicCoeffs[i] * id^i
	rhs := p.CurvePoint.New()
	x := big.NewInt(int64(p.ID))
	xPower := big.NewInt(1)
	order := p.CurvePoint.Order()
	for _, commitment := range publicCoeffs {
		term := p.CurvePoint.New()
		term.ScalarMult(commitment, xPower)
		rhs.Add(rhs, term)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, order)
	}
	return lhs.Equal(rhs)
}

// AggregateShares combines the received shares into the participant's final
// private share.
func (p *Participant) AggregateShares() {
	order := p.CurvePoint.Order()
	p.PrivateShare.Set(p.SecretShares[p.ID])
	for _, share := range p.ReceivedShares {
		p.PrivateShare.Add(p.PrivateShare, share)
		p.PrivateShare.Mod(p.PrivateShare, order)
	}
}

// AggregatePublicKey combines the constant-term commitments of all
// participants into the global encryption public key.
func (p *Participant) AggregatePublicKey(allPublicCoeffs map[int][]ecc.Point) {
	pk := p.CurvePoint.New()
	for _, coeffs := range allPublicCoeffs {
		pk.Add(pk, coeffs[0])
	}
	p.PublicKey = pk
}
