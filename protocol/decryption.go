package protocol

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/crypto/ethereum"
	"github.com/ecopulse/aggregator/types"
)

// DecryptionContext is the durable record of one issued decryption request.
// StateHash binds the request to the exact ciphertext state it targeted, so
// any divergence between request and callback is detectable; Processed flips
// false to true exactly once.
type DecryptionContext struct {
	RequestID types.HexBytes `json:"requestId" cbor:"0,keyasint"`
	BatchID   uint64         `json:"batchId"   cbor:"1,keyasint"`
	StateHash types.HexBytes `json:"stateHash" cbor:"2,keyasint"`
	Processed bool           `json:"processed" cbor:"3,keyasint"`
}

// stateHash commits to the exact ciphertext handles plus the protocol
// instance identity. Called with the lock held.
func (p *Protocol) stateHash(aggCongestion, aggEco types.HexBytes) types.HexBytes {
	var buf bytes.Buffer
	buf.Write(aggCongestion)
	buf.Write(aggEco)
	buf.Write(p.instanceID)
	return ethereum.HashRaw(buf.Bytes())
}

// RequestDecryption freezes the current (closed, non-empty) batch state and
// issues exactly one oracle decryption request against it, returning the
// oracle-assigned request identifier. The caller observes completion only
// through the event stream.
func (p *Protocol) RequestDecryption(caller common.Address) (types.HexBytes, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := p.requireNotPaused(); err != nil {
		return nil, err
	}
	now := p.now().Unix()
	if err := p.limiter.check(caller, ActionDecrypt, now); err != nil {
		return nil, err
	}
	if p.batch.open {
		return nil, fmt.Errorf("%w: batch %d is still open", ErrBatchNotOpen, p.batch.id)
	}
	if p.batch.submissionCount == 0 {
		return nil, fmt.Errorf("%w: batch %d", ErrNoDataToDecrypt, p.batch.id)
	}

	hash := p.stateHash(p.batch.aggCongestion, p.batch.aggEco)
	requestID, err := p.oracle.RequestDecryption([]types.HexBytes{
		p.batch.aggCongestion,
		p.batch.aggEco,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	p.requests[string(requestID)] = &DecryptionContext{
		RequestID: append(types.HexBytes{}, requestID...),
		BatchID:   p.batch.id,
		StateHash: hash,
	}
	p.limiter.record(caller, ActionDecrypt, now)
	p.events.append(Event{
		Type:      EventDecryptionRequested,
		Timestamp: p.now(),
		RequestID: requestID,
		BatchID:   p.batch.id,
	})
	log.Infow("decryption requested",
		"requestId", requestID.String(),
		"batchId", p.batch.id,
		"stateHash", hash.String(),
	)
	return requestID, nil
}

// HandleDecryptionCallback consumes the asynchronous oracle answer for a
// previously issued request. It validates, in order: that the request is
// known, not yet consumed, still targets the current batch, that the
// aggregate state is byte-identical to the one frozen at request time, and
// that the proof verifies. Only then is the context marked processed and the
// cleartext totals published. A verification failure leaves no state change.
func (p *Protocol) HandleDecryptionCallback(requestID types.HexBytes, clearCongestion, clearEco *big.Int, proof types.HexBytes) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, ok := p.requests[string(requestID)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID.String())
	}
	if ctx.Processed {
		return fmt.Errorf("%w: %s", ErrReplayAttempt, requestID.String())
	}
	if ctx.BatchID != p.batch.id {
		return fmt.Errorf("%w: request for batch %d, current batch %d", ErrInvalidBatchID, ctx.BatchID, p.batch.id)
	}
	if !bytes.Equal(ctx.StateHash, p.stateHash(p.batch.aggCongestion, p.batch.aggEco)) {
		return fmt.Errorf("%w: batch %d", ErrStateMismatch, ctx.BatchID)
	}
	if err := p.oracle.Verify(requestID, []*big.Int{clearCongestion, clearEco}, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	ctx.Processed = true
	p.events.append(Event{
		Type:            EventDecryptionCompleted,
		Timestamp:       p.now(),
		RequestID:       append(types.HexBytes{}, requestID...),
		BatchID:         ctx.BatchID,
		ClearCongestion: (*types.BigInt)(new(big.Int).Set(clearCongestion)),
		ClearEco:        (*types.BigInt)(new(big.Int).Set(clearEco)),
	})
	log.Infow("decryption completed",
		"requestId", requestID.String(),
		"batchId", ctx.BatchID,
		"clearCongestion", clearCongestion.String(),
		"clearEco", clearEco.String(),
	)
	return nil
}

// RequestStatus returns a copy of the decryption context for the given
// request identifier, or nil if the request was never issued.
func (p *Protocol) RequestStatus(requestID types.HexBytes) *DecryptionContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, ok := p.requests[string(requestID)]
	if !ok {
		return nil
	}
	out := *ctx
	out.RequestID = append(types.HexBytes{}, ctx.RequestID...)
	out.StateHash = append(types.HexBytes{}, ctx.StateHash...)
	return &out
}
