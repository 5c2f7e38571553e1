package storage

import (
	"encoding/binary"

	"github.com/ecopulse/aggregator/protocol"
)

func eventKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// AppendEvent persists one event keyed by its sequence number. Big-endian
// keys keep iteration in append order.
func (s *Storage) AppendEvent(ev protocol.Event) error {
	return s.setArtifact(eventPrefix, eventKey(ev.Seq), ev)
}

// Event retrieves the event with the given sequence number. It returns
// ErrNotFound if no such event was archived.
func (s *Storage) Event(seq uint64) (*protocol.Event, error) {
	ev := &protocol.Event{}
	if err := s.getArtifact(eventPrefix, eventKey(seq), ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvents returns up to limit archived events with sequence number
// greater than fromSeq, in order. A limit of 0 means no limit.
func (s *Storage) ListEvents(fromSeq uint64, limit int) ([]protocol.Event, error) {
	keys, err := s.listArtifacts(eventPrefix)
	if err != nil {
		return nil, err
	}
	var events []protocol.Event
	for _, key := range keys {
		if binary.BigEndian.Uint64(key) <= fromSeq {
			continue
		}
		ev := protocol.Event{}
		if err := s.getArtifact(eventPrefix, key, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

// LastEventSeq returns the sequence number of the newest archived event, or
// zero when the archive is empty.
func (s *Storage) LastEventSeq() (uint64, error) {
	keys, err := s.listArtifacts(eventPrefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(keys[len(keys)-1]), nil
}
