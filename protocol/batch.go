package protocol

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/types"
)

// batch is the unit of aggregation: a window of accepted encrypted
// contributions folded into one pair of ciphertext handles. A batch mutates
// only while open and is frozen the instant it closes.
type batch struct {
	id              uint64
	open            bool
	aggCongestion   types.HexBytes
	aggEco          types.HexBytes
	submissionCount uint64
}

// BatchSnapshot is the read-only view of the current batch exposed to the
// presentation layer.
type BatchSnapshot struct {
	ID              uint64         `json:"id"`
	Open            bool           `json:"open"`
	SubmissionCount uint64         `json:"submissionCount"`
	AggCongestion   types.HexBytes `json:"aggCongestion"`
	AggEco          types.HexBytes `json:"aggEco"`
}

// CurrentBatch returns a snapshot of the current batch.
func (p *Protocol) CurrentBatch() BatchSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batchSnapshot()
}

func (p *Protocol) batchSnapshot() BatchSnapshot {
	return BatchSnapshot{
		ID:              p.batch.id,
		Open:            p.batch.open,
		SubmissionCount: p.batch.submissionCount,
		AggCongestion:   append(types.HexBytes{}, p.batch.aggCongestion...),
		AggEco:          append(types.HexBytes{}, p.batch.aggEco...),
	}
}

// OpenBatch starts a new batch with the next id and zeroed aggregates. If the
// current batch is still open it is closed first, emitting its closed event
// before the opened one.
func (p *Protocol) OpenBatch(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if err := p.requireNotPaused(); err != nil {
		return err
	}
	if p.batch.open {
		p.batch.open = false
		p.events.append(p.batchClosedEvent())
	}
	p.batch = &batch{id: p.batch.id + 1, open: true}
	p.events.append(Event{
		Type:      EventBatchOpened,
		Timestamp: p.now(),
		BatchID:   p.batch.id,
	})
	log.Infow("batch opened", "batchId", p.batch.id)
	return nil
}

// CloseBatch freezes the current batch. It fails with ErrBatchNotOpen if the
// batch is already closed.
func (p *Protocol) CloseBatch(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if err := p.requireNotPaused(); err != nil {
		return err
	}
	if !p.batch.open {
		return fmt.Errorf("%w: batch %d is closed", ErrBatchNotOpen, p.batch.id)
	}
	p.batch.open = false
	p.events.append(p.batchClosedEvent())
	log.Infow("batch closed", "batchId", p.batch.id, "submissions", p.batch.submissionCount)
	return nil
}

// batchClosedEvent freezes the batch state into its closed event so that
// consumers see the aggregates as they were at closing time.
func (p *Protocol) batchClosedEvent() Event {
	return Event{
		Type:            EventBatchClosed,
		Timestamp:       p.now(),
		BatchID:         p.batch.id,
		SubmissionCount: p.batch.submissionCount,
		AggCongestion:   append(types.HexBytes{}, p.batch.aggCongestion...),
		AggEco:          append(types.HexBytes{}, p.batch.aggEco...),
	}
}

// Submit admits one encrypted measurement from an authorized provider into
// the open batch, folding both handles into the running aggregates. The
// provider's submission cooldown is consumed only when the whole call is
// admitted.
func (p *Protocol) Submit(provider common.Address, encCongestion, encEco types.HexBytes) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.providers[provider] {
		return fmt.Errorf("%w: %s", ErrNotAuthorizedSubmitter, provider.Hex())
	}
	if err := p.requireNotPaused(); err != nil {
		return err
	}
	now := p.now().Unix()
	if err := p.limiter.check(provider, ActionSubmit, now); err != nil {
		return err
	}
	if !p.batch.open {
		return fmt.Errorf("%w: batch %d is closed", ErrBatchNotOpen, p.batch.id)
	}
	if !p.engine.IsInitialized(encCongestion) || !p.engine.IsInitialized(encEco) {
		return ErrInvalidCiphertext
	}

	newCongestion, err := p.engine.Accumulate(p.batch.aggCongestion, encCongestion)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	newEco, err := p.engine.Accumulate(p.batch.aggEco, encEco)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	p.batch.aggCongestion = newCongestion
	p.batch.aggEco = newEco
	p.batch.submissionCount++
	p.limiter.record(provider, ActionSubmit, now)
	p.events.append(Event{
		Type:            EventDataSubmitted,
		Timestamp:       p.now(),
		Principal:       &provider,
		BatchID:         p.batch.id,
		SubmissionCount: p.batch.submissionCount,
		EncCongestion:   append(types.HexBytes{}, encCongestion...),
		EncEco:          append(types.HexBytes{}, encEco...),
	})
	log.Debugw("measurement submitted",
		"provider", provider.Hex(),
		"batchId", p.batch.id,
		"submissions", p.batch.submissionCount,
	)
	return nil
}
