package service

import (
	"context"
	"fmt"
	"sync"

	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/protocol"
	"github.com/ecopulse/aggregator/storage"
	"github.com/ecopulse/aggregator/types"
)

// EventIndexer subscribes to the protocol notification stream and archives
// every event, accepted submission, closed batch and decryption context into
// storage, where the API serves them from.
type EventIndexer struct {
	protocol *protocol.Protocol
	storage  *storage.Storage
	mu       sync.Mutex
	cancel   context.CancelFunc
	events   chan protocol.Event
}

// NewEventIndexer creates a new EventIndexer service.
func NewEventIndexer(prot *protocol.Protocol, stg *storage.Storage) *EventIndexer {
	return &EventIndexer{
		protocol: prot,
		storage:  stg,
	}
}

// Start subscribes to the event stream and begins archiving. It returns an
// error if the service is already running.
func (ix *EventIndexer) Start(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	ix.cancel = cancel
	ix.events = ix.protocol.Subscribe()
	go ix.index(ctx)
	return nil
}

// Stop halts the indexer and releases its subscription.
func (ix *EventIndexer) Stop() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.cancel != nil {
		ix.cancel()
		ix.cancel = nil
		ix.protocol.Unsubscribe(ix.events)
	}
}

func (ix *EventIndexer) index(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ix.events:
			if !ok {
				return
			}
			if err := ix.storage.AppendEvent(ev); err != nil {
				log.Warnw("failed to archive event", "seq", ev.Seq, "error", err.Error())
				continue
			}
			ix.handleEvent(ev)
		}
	}
}

func (ix *EventIndexer) handleEvent(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventDataSubmitted:
		if ev.Principal == nil {
			return
		}
		m := &types.Measurement{
			Provider:      *ev.Principal,
			EncCongestion: ev.EncCongestion,
			EncEco:        ev.EncEco,
		}
		if err := ix.storage.SetMeasurement(ev.BatchID, ev.SubmissionCount, m); err != nil {
			log.Warnw("failed to archive measurement",
				"batchId", ev.BatchID, "provider", ev.Principal.Hex(), "error", err.Error())
		}
	case protocol.EventBatchClosed:
		// The event carries the state frozen at closing time. On an implicit
		// close a newer batch is already current when we get here, so the
		// live snapshot cannot be consulted instead.
		rec := &types.BatchRecord{
			ID:              ev.BatchID,
			SubmissionCount: ev.SubmissionCount,
			AggCongestion:   ev.AggCongestion,
			AggEco:          ev.AggEco,
		}
		if err := ix.storage.SetBatch(rec); err != nil {
			log.Warnw("failed to archive batch", "batchId", ev.BatchID, "error", err.Error())
		}
	case protocol.EventDecryptionRequested:
		ix.archiveContext(ev.RequestID)
	case protocol.EventDecryptionCompleted:
		ix.archiveContext(ev.RequestID)
		rec, err := ix.storage.Batch(ev.BatchID)
		if err != nil {
			rec = &types.BatchRecord{ID: ev.BatchID}
		}
		rec.ClearCongestion = ev.ClearCongestion
		rec.ClearEco = ev.ClearEco
		if err := ix.storage.SetBatch(rec); err != nil {
			log.Warnw("failed to archive batch results", "batchId", ev.BatchID, "error", err.Error())
		}
	}
}

func (ix *EventIndexer) archiveContext(requestID types.HexBytes) {
	ctx := ix.protocol.RequestStatus(requestID)
	if ctx == nil {
		return
	}
	if err := ix.storage.SetDecryptionContext(ctx); err != nil {
		log.Warnw("failed to archive decryption context",
			"requestId", requestID.String(), "error", err.Error())
	}
}
