package oracle

import (
	"fmt"
	"math/big"

	"github.com/ecopulse/aggregator/crypto/ecc"
	"github.com/ecopulse/aggregator/crypto/elgamal"
	"github.com/ecopulse/aggregator/crypto/elgamal/dkg"
)

// Committee is a threshold decryption quorum: no single participant holds the
// decryption key, and any quorum of them can jointly decrypt an aggregate.
type Committee struct {
	participants map[int]*dkg.Participant
	quorum       []int
	publicKey    ecc.Point
}

// NewCommittee runs the distributed key generation among size participants
// with the given reconstruction threshold and returns the resulting
// committee.
func NewCommittee(curve ecc.Point, size, threshold int) (*Committee, error) {
	if threshold <= 0 || threshold > size {
		return nil, fmt.Errorf("invalid threshold %d for committee of %d", threshold, size)
	}
	ids := make([]int, size)
	for i := range ids {
		ids[i] = i + 1
	}

	participants := make(map[int]*dkg.Participant, size)
	for _, id := range ids {
		p := dkg.NewParticipant(id, threshold, ids, curve)
		if err := p.GenerateSecretPolynomial(); err != nil {
			return nil, err
		}
		participants[id] = p
	}
	for _, p := range participants {
		p.ComputeShares()
	}
	// Exchange and verify shares among all participants.
	for _, p := range participants {
		for id, other := range participants {
			if p.ID == id {
				continue
			}
			if err := p.ReceiveShare(id, other.SecretShares[p.ID], other.PublicCoeffs); err != nil {
				return nil, fmt.Errorf("share verification failed: %w", err)
			}
		}
	}
	allPublicCoeffs := make(map[int][]ecc.Point, size)
	for id, p := range participants {
		allPublicCoeffs[id] = p.PublicCoeffs
	}
	for _, p := range participants {
		p.AggregateShares()
		p.AggregatePublicKey(allPublicCoeffs)
	}

	return &Committee{
		participants: participants,
		quorum:       ids[:threshold],
		publicKey:    participants[ids[0]].PublicKey,
	}, nil
}

// PublicKey returns the committee's aggregated encryption key.
func (c *Committee) PublicKey() ecc.Point {
	return c.publicKey
}

// Decrypt combines partial decryptions from a quorum of participants to
// recover the cleartext behind the ciphertext.
func (c *Committee) Decrypt(ct *elgamal.Ciphertext, maxMessage uint64) (*big.Int, error) {
	partials := make(map[int]ecc.Point, len(c.quorum))
	for _, id := range c.quorum {
		partials[id] = c.participants[id].ComputePartialDecryption(ct.C1)
	}
	return dkg.CombinePartialDecryptions(ct.C2, partials, c.quorum, maxMessage)
}
