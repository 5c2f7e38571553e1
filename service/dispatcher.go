// Package service contains the background services that glue the protocol to
// its collaborators: the oracle dispatcher, which turns queued decryption
// jobs into protocol callbacks, and the event indexer, which archives the
// notification stream.
package service

import (
	"context"
	"fmt"
	"sync"

	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/oracle"
	"github.com/ecopulse/aggregator/protocol"
)

// OracleDispatcher consumes the oracle's job queue, decrypting each request
// and delivering the result through the protocol's callback entry point. It
// is the only caller of HandleDecryptionCallback.
type OracleDispatcher struct {
	oracle   *oracle.Oracle
	protocol *protocol.Protocol
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewOracleDispatcher creates a new OracleDispatcher service.
func NewOracleDispatcher(orc *oracle.Oracle, prot *protocol.Protocol) *OracleDispatcher {
	return &OracleDispatcher{
		oracle:   orc,
		protocol: prot,
	}
}

// Start begins consuming decryption jobs. It returns an error if the service
// is already running.
func (d *OracleDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.dispatch(ctx)
	return nil
}

// Stop halts the dispatcher.
func (d *OracleDispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *OracleDispatcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.oracle.Jobs():
			res, err := d.oracle.Decrypt(job)
			if err != nil {
				log.Warnw("failed to decrypt request",
					"requestId", job.RequestID.String(), "error", err.Error())
				continue
			}
			if len(res.Cleartexts) != 2 {
				log.Warnw("unexpected cleartext count",
					"requestId", job.RequestID.String(), "count", len(res.Cleartexts))
				continue
			}
			err = d.protocol.HandleDecryptionCallback(
				res.RequestID, res.Cleartexts[0], res.Cleartexts[1], res.Proof)
			if err != nil {
				log.Warnw("decryption callback rejected",
					"requestId", job.RequestID.String(), "error", err.Error())
				continue
			}
			log.Debugw("decryption callback delivered", "requestId", job.RequestID.String())
		}
	}
}
