package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ecopulse/aggregator/protocol"
	"github.com/ecopulse/aggregator/types"
)

func batchKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// SetBatch stores or updates an archived batch record.
func (s *Storage) SetBatch(rec *types.BatchRecord) error {
	if rec == nil {
		return fmt.Errorf("nil batch record")
	}
	return s.setArtifact(batchPrefix, batchKey(rec.ID), rec)
}

// Batch retrieves an archived batch record by id. It returns ErrNotFound if
// the batch was never archived.
func (s *Storage) Batch(id uint64) (*types.BatchRecord, error) {
	rec := &types.BatchRecord{}
	if err := s.getArtifact(batchPrefix, batchKey(id), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListBatches returns the ids of all archived batches, in order.
func (s *Storage) ListBatches() ([]uint64, error) {
	keys, err := s.listArtifacts(batchPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(keys))
	for i, key := range keys {
		ids[i] = binary.BigEndian.Uint64(key)
	}
	return ids, nil
}

// SetDecryptionContext mirrors a decryption context into the archive.
func (s *Storage) SetDecryptionContext(ctx *protocol.DecryptionContext) error {
	if ctx == nil {
		return fmt.Errorf("nil decryption context")
	}
	return s.setArtifact(contextPrefix, ctx.RequestID, ctx)
}

// DecryptionContext retrieves an archived decryption context by request id.
// It returns ErrNotFound if the request was never archived.
func (s *Storage) DecryptionContext(requestID types.HexBytes) (*protocol.DecryptionContext, error) {
	ctx := &protocol.DecryptionContext{}
	if err := s.getArtifact(contextPrefix, requestID, ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}
