// Package oracle implements the asynchronous decryption oracle. Decryption
// requests are queued and answered out of band: for each request the oracle
// decrypts the frozen ciphertext handles, either with its own private key or
// by combining threshold partial decryptions, and attaches an ECDSA proof
// signed with its ethereum identity key. The protocol later verifies that
// proof before consuming the cleartexts.
package oracle

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/arbo"

	"github.com/ecopulse/aggregator/crypto/ecc"
	"github.com/ecopulse/aggregator/crypto/elgamal"
	"github.com/ecopulse/aggregator/crypto/ethereum"
	"github.com/ecopulse/aggregator/types"
	"github.com/ecopulse/aggregator/util"
)

// DefaultMaxMessage bounds the discrete logarithm search when recovering
// cleartext totals. It caps the largest total the oracle can reveal.
const DefaultMaxMessage = 1 << 24

// cleartextSize is the fixed width of a cleartext scalar inside a signed
// proof message.
const cleartextSize = 32

// Job is one queued decryption request.
type Job struct {
	RequestID types.HexBytes
	Handles   []types.HexBytes
}

// Result carries the cleartexts and proof for one answered request.
type Result struct {
	RequestID  types.HexBytes
	Cleartexts []*big.Int
	Proof      types.HexBytes
}

// Config carries the key material and parameters of an Oracle.
type Config struct {
	// Curve is a point on the ciphertext curve.
	Curve ecc.Point
	// PrivateKey is the ElGamal decryption key for single-key mode.
	// Leave nil and set Committee for threshold mode.
	PrivateKey *big.Int
	// PublicKey is the ElGamal encryption key matching PrivateKey or the
	// committee's aggregated key.
	PublicKey ecc.Point
	// Committee enables threshold mode.
	Committee *Committee
	// IdentityKey signs decryption proofs. Generated when nil.
	IdentityKey *ecdsa.PrivateKey
	// MaxMessage bounds the discrete log search. Defaults to
	// DefaultMaxMessage.
	MaxMessage uint64
	// QueueSize is the job queue capacity. Defaults to 64.
	QueueSize int
}

// Oracle implements the protocol's DecryptionOracle interface.
type Oracle struct {
	curve      ecc.Point
	privateKey *big.Int
	publicKey  ecc.Point
	committee  *Committee

	identityKey *ecdsa.PrivateKey
	address     common.Address
	maxMessage  uint64
	jobs        chan Job
}

// New creates an Oracle from the given configuration.
func New(cfg Config) (*Oracle, error) {
	if cfg.Curve == nil {
		return nil, fmt.Errorf("missing curve")
	}
	if cfg.PrivateKey == nil && cfg.Committee == nil {
		return nil, fmt.Errorf("missing decryption key: set PrivateKey or Committee")
	}
	if cfg.PublicKey == nil {
		return nil, fmt.Errorf("missing public key")
	}
	identityKey := cfg.IdentityKey
	if identityKey == nil {
		var err error
		if identityKey, err = ethcrypto.GenerateKey(); err != nil {
			return nil, fmt.Errorf("failed to generate identity key: %w", err)
		}
	}
	maxMessage := cfg.MaxMessage
	if maxMessage == 0 {
		maxMessage = DefaultMaxMessage
	}
	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = 64
	}
	return &Oracle{
		curve:       cfg.Curve,
		privateKey:  cfg.PrivateKey,
		publicKey:   cfg.PublicKey,
		committee:   cfg.Committee,
		identityKey: identityKey,
		address:     ethcrypto.PubkeyToAddress(identityKey.PublicKey),
		maxMessage:  maxMessage,
		jobs:        make(chan Job, queueSize),
	}, nil
}

// Address returns the ethereum address behind the oracle's proof signatures.
func (o *Oracle) Address() common.Address {
	return o.address
}

// PublicKey returns the ElGamal encryption key submitters must use.
func (o *Oracle) PublicKey() ecc.Point {
	return o.publicKey
}

// Jobs returns the queue of pending decryption requests, consumed by the
// dispatcher service.
func (o *Oracle) Jobs() <-chan Job {
	return o.jobs
}

// RequestDecryption assigns a fresh request identifier, queues the handles
// for asynchronous decryption and returns immediately.
func (o *Oracle) RequestDecryption(handles []types.HexBytes) (types.HexBytes, error) {
	if len(handles) == 0 {
		return nil, fmt.Errorf("no handles to decrypt")
	}
	job := Job{
		RequestID: util.RandomBytes(32),
		Handles:   make([]types.HexBytes, len(handles)),
	}
	for i, h := range handles {
		job.Handles[i] = append(types.HexBytes{}, h...)
	}
	select {
	case o.jobs <- job:
	default:
		return nil, fmt.Errorf("decryption queue full")
	}
	return job.RequestID, nil
}

// Decrypt answers a queued job: it recovers the cleartext behind every handle
// and signs the proof binding cleartexts to the request identifier.
func (o *Oracle) Decrypt(job Job) (*Result, error) {
	cleartexts := make([]*big.Int, len(job.Handles))
	for i, handle := range job.Handles {
		c := elgamal.NewCiphertext(o.curve)
		if err := c.Deserialize(handle); err != nil {
			return nil, fmt.Errorf("invalid handle %d: %w", i, err)
		}
		msg, err := o.decryptCiphertext(c)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt handle %d: %w", i, err)
		}
		cleartexts[i] = msg
	}
	proof, err := ethereum.SignMessage(proofMessage(job.RequestID, cleartexts), o.identityKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign proof: %w", err)
	}
	return &Result{
		RequestID:  job.RequestID,
		Cleartexts: cleartexts,
		Proof:      proof,
	}, nil
}

func (o *Oracle) decryptCiphertext(c *elgamal.Ciphertext) (*big.Int, error) {
	if o.committee != nil {
		return o.committee.Decrypt(c, o.maxMessage)
	}
	_, msg, err := elgamal.Decrypt(o.publicKey, o.privateKey, c.C1, c.C2, o.maxMessage)
	return msg, err
}

// Verify checks that proof is a valid signature by the oracle identity over
// the request identifier and cleartexts.
func (o *Oracle) Verify(requestID types.HexBytes, cleartexts []*big.Int, proof types.HexBytes) error {
	return ethereum.VerifySignature(proofMessage(requestID, cleartexts), proof, o.address)
}

// proofMessage is the byte string signed by the oracle: the request
// identifier followed by every cleartext as a fixed-width big-endian scalar.
func proofMessage(requestID types.HexBytes, cleartexts []*big.Int) []byte {
	msg := append([]byte{}, requestID...)
	for _, c := range cleartexts {
		msg = append(msg, arbo.BigIntToBytes(cleartextSize, c)...)
	}
	return msg
}
