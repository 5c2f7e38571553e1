// Package storage archives the protocol's observable history in a prefixed
// key-value store: the ordered event stream, closed batch records and
// decryption contexts. It is written by the indexer service and read by the
// API; the protocol itself never depends on it. The following prefixes are
// used:
//   - 'e/' for events, keyed by sequence number
//   - 'b/' for batch records, keyed by batch id
//   - 'd/' for decryption contexts, keyed by request id
//   - 'm/' for archived submissions, keyed by batch id and position
package storage

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	eventPrefix       = []byte("e/")
	batchPrefix       = []byte("b/")
	contextPrefix     = []byte("d/")
	measurementPrefix = []byte("m/")
)

// ErrNotFound is returned when the requested artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Storage wraps the database with typed accessors for the archived
// artifacts.
type Storage struct {
	db db.Database
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	s.db.Close()
}

// encodeArtifact serializes an artifact with deterministic CBOR.
func encodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// setArtifact stores an artifact under the given prefix and key.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// getArtifact retrieves an artifact into out. It returns ErrNotFound if the
// key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	rTx := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := rTx.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return decodeArtifact(data, out)
}

// listArtifacts returns the keys stored under the given prefix, in key order.
func (s *Storage) listArtifacts(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := prefixeddb.NewPrefixedReader(s.db, prefix).Iterate(nil, func(k, _ []byte) bool {
		key := make([]byte, len(k))
		copy(key, k)
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
