package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ecopulse/aggregator/types"
)

// measurementKey orders archived submissions by batch and then by their
// position within the batch.
func measurementKey(batchID, index uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], batchID)
	binary.BigEndian.PutUint64(key[8:], index)
	return key
}

// SetMeasurement archives an accepted submission under its batch and
// position.
func (s *Storage) SetMeasurement(batchID, index uint64, m *types.Measurement) error {
	if m == nil {
		return fmt.Errorf("nil measurement")
	}
	return s.setArtifact(measurementPrefix, measurementKey(batchID, index), m)
}

// Measurements returns the archived submissions of a batch in admission
// order. A batch without archived submissions yields an empty slice.
func (s *Storage) Measurements(batchID uint64) ([]types.Measurement, error) {
	keys, err := s.listArtifacts(measurementPrefix)
	if err != nil {
		return nil, err
	}
	measurements := []types.Measurement{}
	for _, key := range keys {
		if len(key) != 16 || binary.BigEndian.Uint64(key[:8]) != batchID {
			continue
		}
		m := types.Measurement{}
		if err := s.getArtifact(measurementPrefix, key, &m); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, nil
}
