package protocol

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/types"
)

// EventType identifies a state transition notification.
type EventType string

const (
	EventAdminTransferred    EventType = "adminTransferred"
	EventProviderAdded       EventType = "providerAdded"
	EventProviderRemoved     EventType = "providerRemoved"
	EventPaused              EventType = "paused"
	EventUnpaused            EventType = "unpaused"
	EventCooldownUpdated     EventType = "cooldownUpdated"
	EventBatchOpened         EventType = "batchOpened"
	EventBatchClosed         EventType = "batchClosed"
	EventDataSubmitted       EventType = "dataSubmitted"
	EventDecryptionRequested EventType = "decryptionRequested"
	EventDecryptionCompleted EventType = "decryptionCompleted"
)

// Event is an append-only notification of a protocol state transition. Seq is
// assigned by the log and increases by one per event. Only the fields
// relevant to the event type are set.
type Event struct {
	Seq       uint64    `json:"seq"                 cbor:"0,keyasint"`
	Type      EventType `json:"type"                cbor:"1,keyasint"`
	Timestamp time.Time `json:"timestamp"           cbor:"2,keyasint"`

	Principal *common.Address `json:"principal,omitempty" cbor:"3,keyasint,omitempty"`
	OldAdmin  *common.Address `json:"oldAdmin,omitempty"  cbor:"4,keyasint,omitempty"`
	NewAdmin  *common.Address `json:"newAdmin,omitempty"  cbor:"5,keyasint,omitempty"`

	OldCooldown int64 `json:"oldCooldown,omitempty" cbor:"6,keyasint,omitempty"`
	NewCooldown int64 `json:"newCooldown,omitempty" cbor:"7,keyasint,omitempty"`

	BatchID   uint64         `json:"batchId,omitempty"   cbor:"8,keyasint,omitempty"`
	RequestID types.HexBytes `json:"requestId,omitempty" cbor:"9,keyasint,omitempty"`

	ClearCongestion *types.BigInt `json:"clearCongestion,omitempty" cbor:"10,keyasint,omitempty"`
	ClearEco        *types.BigInt `json:"clearEco,omitempty"        cbor:"11,keyasint,omitempty"`

	// Frozen batch state, set on batchClosed. The event is the only reliable
	// carrier: by the time a consumer sees it the current batch may already be
	// a later one. On dataSubmitted, SubmissionCount is the position of the
	// contribution within its batch.
	SubmissionCount uint64         `json:"submissionCount,omitempty" cbor:"12,keyasint,omitempty"`
	AggCongestion   types.HexBytes `json:"aggCongestion,omitempty"   cbor:"13,keyasint,omitempty"`
	AggEco          types.HexBytes `json:"aggEco,omitempty"          cbor:"14,keyasint,omitempty"`

	// The accepted ciphertext handles, set on dataSubmitted.
	EncCongestion types.HexBytes `json:"encCongestion,omitempty" cbor:"15,keyasint,omitempty"`
	EncEco        types.HexBytes `json:"encEco,omitempty"        cbor:"16,keyasint,omitempty"`
}

// eventLog is the ordered append-only notification stream. Appends happen
// while the protocol lock is held, which is what guarantees the ordering.
type eventLog struct {
	events      []Event
	subscribers []chan Event
}

// append assigns the next sequence number, stores the event and fans it out
// to subscribers. A subscriber that cannot keep up loses events rather than
// blocking a state transition.
func (l *eventLog) append(ev Event) {
	ev.Seq = uint64(len(l.events)) + 1
	l.events = append(l.events, ev)
	for _, ch := range l.subscribers {
		select {
		case ch <- ev:
		default:
			log.Warnw("event subscriber lagging, dropping event", "seq", ev.Seq, "type", string(ev.Type))
		}
	}
}

// since returns a copy of all events with Seq > fromSeq.
func (l *eventLog) since(fromSeq uint64) []Event {
	if fromSeq >= uint64(len(l.events)) {
		return nil
	}
	out := make([]Event, len(l.events)-int(fromSeq))
	copy(out, l.events[fromSeq:])
	return out
}

func (l *eventLog) subscribe() chan Event {
	ch := make(chan Event, 256)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

func (l *eventLog) unsubscribe(ch chan Event) {
	for i, sub := range l.subscribers {
		if sub == ch {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}
