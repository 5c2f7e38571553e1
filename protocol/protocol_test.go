package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/types"
)

func init() {
	log.Init("error", "stderr", nil)
}

var (
	adminAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	providerAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	otherAddr    = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// fakeEngine folds 8-byte big-endian handles by integer addition, which is
// commutative and associative like the real engine.
type fakeEngine struct{}

func handle(v uint64) types.HexBytes {
	h := make(types.HexBytes, 8)
	binary.BigEndian.PutUint64(h, v)
	return h
}

func handleValue(h types.HexBytes) uint64 {
	return binary.BigEndian.Uint64(h)
}

func (fakeEngine) Accumulate(acc, delta types.HexBytes) (types.HexBytes, error) {
	if len(delta) != 8 {
		return nil, fmt.Errorf("bad delta")
	}
	if len(acc) == 0 {
		return append(types.HexBytes{}, delta...), nil
	}
	if len(acc) != 8 {
		return nil, fmt.Errorf("bad accumulator")
	}
	return handle(handleValue(acc) + handleValue(delta)), nil
}

func (fakeEngine) IsInitialized(h types.HexBytes) bool {
	return len(h) == 8
}

// fakeOracle assigns sequential request ids and accepts only the proof
// returned by proofFor.
type fakeOracle struct {
	nextID   uint64
	requests map[string][]types.HexBytes
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{requests: make(map[string][]types.HexBytes)}
}

func (o *fakeOracle) RequestDecryption(handles []types.HexBytes) (types.HexBytes, error) {
	o.nextID++
	id := handle(o.nextID)
	o.requests[string(id)] = handles
	return id, nil
}

func proofFor(requestID types.HexBytes) types.HexBytes {
	return append(types.HexBytes("proof:"), requestID...)
}

func (o *fakeOracle) Verify(requestID types.HexBytes, _ []*big.Int, proof types.HexBytes) error {
	if !bytes.Equal(proof, proofFor(requestID)) {
		return fmt.Errorf("bad proof")
	}
	return nil
}

// testClock is a manually advanced clock.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestProtocol(t *testing.T, cooldown int64) (*Protocol, *fakeOracle, *testClock) {
	t.Helper()
	clock := newTestClock()
	orc := newFakeOracle()
	p, err := New(Config{
		Administrator:   adminAddr,
		Engine:          fakeEngine{},
		Oracle:          orc,
		CooldownSeconds: cooldown,
		Now:             clock.Now,
	})
	qt.Assert(t, err, qt.IsNil)
	return p, orc, clock
}

func TestAccessControl(t *testing.T) {
	c := qt.New(t)
	p, _, _ := newTestProtocol(t, 10)

	// Only the administrator can mutate the provider set.
	c.Assert(p.AddProvider(otherAddr, providerAddr), qt.ErrorIs, ErrNotAdministrator)
	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.IsProvider(providerAddr), qt.IsTrue)

	// Idempotent add emits no second event.
	events := p.Events(0)
	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.Events(0), qt.HasLen, len(events))

	c.Assert(p.RemoveProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.IsProvider(providerAddr), qt.IsFalse)

	// Idempotent remove emits no event either.
	events = p.Events(0)
	c.Assert(p.RemoveProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.Events(0), qt.HasLen, len(events))

	// Administrator transfer is atomic and carries old and new identity.
	c.Assert(p.TransferAdministrator(otherAddr, otherAddr), qt.ErrorIs, ErrNotAdministrator)
	c.Assert(p.TransferAdministrator(adminAddr, otherAddr), qt.IsNil)
	c.Assert(p.Administrator(), qt.Equals, otherAddr)
	last := p.Events(0)[len(p.Events(0))-1]
	c.Assert(last.Type, qt.Equals, EventAdminTransferred)
	c.Assert(*last.OldAdmin, qt.Equals, adminAddr)
	c.Assert(*last.NewAdmin, qt.Equals, otherAddr)

	// The old administrator lost its powers.
	c.Assert(p.Pause(adminAddr), qt.ErrorIs, ErrNotAdministrator)
}

func TestPauseAsymmetry(t *testing.T) {
	c := qt.New(t)
	p, _, _ := newTestProtocol(t, 10)

	c.Assert(p.Pause(adminAddr), qt.IsNil)
	c.Assert(p.Paused(), qt.IsTrue)
	// Double pause is rejected.
	c.Assert(p.Pause(adminAddr), qt.ErrorIs, ErrAlreadyPaused)

	// Unpause has no such guard and stays idempotent.
	c.Assert(p.Unpause(adminAddr), qt.IsNil)
	c.Assert(p.Paused(), qt.IsFalse)
	c.Assert(p.Unpause(adminAddr), qt.IsNil)
}

func TestSetCooldown(t *testing.T) {
	c := qt.New(t)
	p, _, _ := newTestProtocol(t, 10)

	c.Assert(p.SetCooldown(adminAddr, 0), qt.ErrorIs, ErrInvalidCooldown)
	c.Assert(p.SetCooldown(adminAddr, -5), qt.ErrorIs, ErrInvalidCooldown)
	c.Assert(p.SetCooldown(otherAddr, 30), qt.ErrorIs, ErrNotAdministrator)

	c.Assert(p.SetCooldown(adminAddr, 30), qt.IsNil)
	c.Assert(p.Cooldown(), qt.Equals, int64(30))
	last := p.Events(0)[len(p.Events(0))-1]
	c.Assert(last.Type, qt.Equals, EventCooldownUpdated)
	c.Assert(last.OldCooldown, qt.Equals, int64(10))
	c.Assert(last.NewCooldown, qt.Equals, int64(30))
}

func TestBatchLifecycle(t *testing.T) {
	c := qt.New(t)
	p, _, _ := newTestProtocol(t, 10)

	// The protocol starts with a closed batch with id 1.
	snap := p.CurrentBatch()
	c.Assert(snap.ID, qt.Equals, uint64(1))
	c.Assert(snap.Open, qt.IsFalse)

	// Closing a closed batch is rejected.
	c.Assert(p.CloseBatch(adminAddr), qt.ErrorIs, ErrBatchNotOpen)

	// First open produces id 2.
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	snap = p.CurrentBatch()
	c.Assert(snap.ID, qt.Equals, uint64(2))
	c.Assert(snap.Open, qt.IsTrue)
	c.Assert(snap.SubmissionCount, qt.Equals, uint64(0))

	// Opening over a still-open batch closes it first, emitting the
	// closed event before the opened one, and ids increment by one.
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	c.Assert(p.CurrentBatch().ID, qt.Equals, uint64(4))

	var batchEvents []Event
	for _, ev := range p.Events(0) {
		if ev.Type == EventBatchOpened || ev.Type == EventBatchClosed {
			batchEvents = append(batchEvents, ev)
		}
	}
	// open(2), close(2)+open(3), close(3)+open(4)
	c.Assert(batchEvents, qt.HasLen, 5)
	c.Assert(batchEvents[0].Type, qt.Equals, EventBatchOpened)
	c.Assert(batchEvents[0].BatchID, qt.Equals, uint64(2))
	c.Assert(batchEvents[1].Type, qt.Equals, EventBatchClosed)
	c.Assert(batchEvents[1].BatchID, qt.Equals, uint64(2))
	c.Assert(batchEvents[2].Type, qt.Equals, EventBatchOpened)
	c.Assert(batchEvents[2].BatchID, qt.Equals, uint64(3))
	c.Assert(batchEvents[3].Type, qt.Equals, EventBatchClosed)
	c.Assert(batchEvents[3].BatchID, qt.Equals, uint64(3))
	c.Assert(batchEvents[4].Type, qt.Equals, EventBatchOpened)
	c.Assert(batchEvents[4].BatchID, qt.Equals, uint64(4))

	// Lifecycle commands require the protocol not to be paused.
	c.Assert(p.Pause(adminAddr), qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.ErrorIs, ErrPaused)
	c.Assert(p.CloseBatch(adminAddr), qt.ErrorIs, ErrPaused)
}

// The batchClosed event must carry the submissions and aggregates frozen at
// closing time. On an implicit close both events are emitted under one
// transition, so consumers have no other way to observe the closed state.
func TestClosedEventCarriesFrozenState(t *testing.T) {
	c := qt.New(t)
	p, _, _ := newTestProtocol(t, 10)

	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	c.Assert(p.Submit(providerAddr, handle(5), handle(3)), qt.IsNil)
	frozen := p.CurrentBatch()

	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)

	var closed *Event
	for _, ev := range p.Events(0) {
		if ev.Type == EventBatchClosed && ev.BatchID == 2 {
			closed = &ev
			break
		}
	}
	c.Assert(closed, qt.Not(qt.IsNil))
	c.Assert(closed.SubmissionCount, qt.Equals, uint64(1))
	c.Assert(closed.AggCongestion.String(), qt.Equals, frozen.AggCongestion.String())
	c.Assert(closed.AggEco.String(), qt.Equals, frozen.AggEco.String())
}

func TestSubmitGuards(t *testing.T) {
	c := qt.New(t)
	p, _, clock := newTestProtocol(t, 10)

	// Not authorized.
	c.Assert(p.Submit(providerAddr, handle(5), handle(3)), qt.ErrorIs, ErrNotAuthorizedSubmitter)
	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)

	// Batch is closed.
	c.Assert(p.Submit(providerAddr, handle(5), handle(3)), qt.ErrorIs, ErrBatchNotOpen)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)

	// Malformed ciphertext handles.
	c.Assert(p.Submit(providerAddr, types.HexBytes{1, 2}, handle(3)), qt.ErrorIs, ErrInvalidCiphertext)
	c.Assert(p.Submit(providerAddr, handle(5), nil), qt.ErrorIs, ErrInvalidCiphertext)
	// A rejected call consumes no cooldown slot.
	c.Assert(p.Submit(providerAddr, handle(5), handle(3)), qt.IsNil)

	// Cooldown active until exactly lastAction+cooldown.
	c.Assert(p.Submit(providerAddr, handle(1), handle(1)), qt.ErrorIs, ErrCooldownActive)
	clock.Advance(9 * time.Second)
	c.Assert(p.Submit(providerAddr, handle(1), handle(1)), qt.ErrorIs, ErrCooldownActive)
	clock.Advance(1 * time.Second)
	c.Assert(p.Submit(providerAddr, handle(1), handle(1)), qt.IsNil)

	// Paused blocks submissions.
	c.Assert(p.Pause(adminAddr), qt.IsNil)
	clock.Advance(time.Hour)
	c.Assert(p.Submit(providerAddr, handle(1), handle(1)), qt.ErrorIs, ErrPaused)
}

func TestSubmitAggregation(t *testing.T) {
	c := qt.New(t)
	p, _, clock := newTestProtocol(t, 1)
	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.AddProvider(adminAddr, otherAddr), qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)

	// Interleave two providers; the fold is order-independent.
	contributions := []struct {
		from       common.Address
		congestion uint64
		eco        uint64
	}{
		{providerAddr, 5, 3},
		{otherAddr, 7, 1},
		{providerAddr, 2, 9},
		{otherAddr, 4, 4},
	}
	var wantCongestion, wantEco uint64
	for _, contrib := range contributions {
		clock.Advance(time.Second)
		c.Assert(p.Submit(contrib.from, handle(contrib.congestion), handle(contrib.eco)), qt.IsNil)
		wantCongestion += contrib.congestion
		wantEco += contrib.eco
	}

	snap := p.CurrentBatch()
	c.Assert(snap.SubmissionCount, qt.Equals, uint64(len(contributions)))
	c.Assert(handleValue(snap.AggCongestion), qt.Equals, wantCongestion)
	c.Assert(handleValue(snap.AggEco), qt.Equals, wantEco)

	// Opening a new batch resets counter and aggregates.
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	snap = p.CurrentBatch()
	c.Assert(snap.SubmissionCount, qt.Equals, uint64(0))
	c.Assert(snap.AggCongestion, qt.HasLen, 0)
	c.Assert(snap.AggEco, qt.HasLen, 0)
}

func TestRequestDecryptionGuards(t *testing.T) {
	c := qt.New(t)
	p, _, clock := newTestProtocol(t, 1)
	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)

	// Still open.
	_, err := p.RequestDecryption(adminAddr)
	c.Assert(err, qt.ErrorIs, ErrBatchNotOpen)

	// Closed but empty.
	c.Assert(p.CloseBatch(adminAddr), qt.IsNil)
	_, err = p.RequestDecryption(adminAddr)
	c.Assert(err, qt.ErrorIs, ErrNoDataToDecrypt)

	// Non-admin.
	_, err = p.RequestDecryption(providerAddr)
	c.Assert(err, qt.ErrorIs, ErrNotAdministrator)

	// With data: first request succeeds, second hits the decryption
	// cooldown.
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	c.Assert(p.Submit(providerAddr, handle(5), handle(3)), qt.IsNil)
	c.Assert(p.CloseBatch(adminAddr), qt.IsNil)
	requestID, err := p.RequestDecryption(adminAddr)
	c.Assert(err, qt.IsNil)
	c.Assert(requestID, qt.Not(qt.HasLen), 0)
	_, err = p.RequestDecryption(adminAddr)
	c.Assert(err, qt.ErrorIs, ErrCooldownActive)
	clock.Advance(time.Second)
	_, err = p.RequestDecryption(adminAddr)
	c.Assert(err, qt.IsNil)
}

func TestCallbackValidation(t *testing.T) {
	c := qt.New(t)
	p, _, clock := newTestProtocol(t, 1)
	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	c.Assert(p.Submit(providerAddr, handle(5), handle(3)), qt.IsNil)
	c.Assert(p.CloseBatch(adminAddr), qt.IsNil)

	requestID, err := p.RequestDecryption(adminAddr)
	c.Assert(err, qt.IsNil)

	// Never-issued request id.
	err = p.HandleDecryptionCallback(handle(999), big.NewInt(5), big.NewInt(3), proofFor(handle(999)))
	c.Assert(err, qt.ErrorIs, ErrUnknownRequest)

	// Invalid proof leaves the context unprocessed.
	err = p.HandleDecryptionCallback(requestID, big.NewInt(5), big.NewInt(3), types.HexBytes("forged"))
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	c.Assert(p.RequestStatus(requestID).Processed, qt.IsFalse)

	// Valid callback succeeds exactly once.
	c.Assert(p.HandleDecryptionCallback(requestID, big.NewInt(5), big.NewInt(3), proofFor(requestID)), qt.IsNil)
	c.Assert(p.RequestStatus(requestID).Processed, qt.IsTrue)
	err = p.HandleDecryptionCallback(requestID, big.NewInt(5), big.NewInt(3), proofFor(requestID))
	c.Assert(err, qt.ErrorIs, ErrReplayAttempt)

	last := p.Events(0)[len(p.Events(0))-1]
	c.Assert(last.Type, qt.Equals, EventDecryptionCompleted)
	c.Assert(last.BatchID, qt.Equals, uint64(2))
	c.Assert(last.ClearCongestion.String(), qt.Equals, "5")
	c.Assert(last.ClearEco.String(), qt.Equals, "3")

	// A re-open between request and callback invalidates the target.
	clock.Advance(time.Second)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	c.Assert(p.Submit(providerAddr, handle(7), handle(2)), qt.IsNil)
	c.Assert(p.CloseBatch(adminAddr), qt.IsNil)
	staleID, err := p.RequestDecryption(adminAddr)
	c.Assert(err, qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	err = p.HandleDecryptionCallback(staleID, big.NewInt(7), big.NewInt(2), proofFor(staleID))
	c.Assert(err, qt.ErrorIs, ErrInvalidBatchID)
}

func TestCallbackStateMismatch(t *testing.T) {
	c := qt.New(t)
	p, _, _ := newTestProtocol(t, 1)
	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)
	c.Assert(p.Submit(providerAddr, handle(5), handle(3)), qt.IsNil)
	c.Assert(p.CloseBatch(adminAddr), qt.IsNil)

	requestID, err := p.RequestDecryption(adminAddr)
	c.Assert(err, qt.IsNil)

	// Adversarial: mutate the frozen aggregate behind the protocol's
	// back, as a submission bug slipping past the closed state would.
	p.mu.Lock()
	p.batch.aggCongestion = handle(9999)
	p.mu.Unlock()

	err = p.HandleDecryptionCallback(requestID, big.NewInt(5), big.NewInt(3), proofFor(requestID))
	c.Assert(err, qt.ErrorIs, ErrStateMismatch)
	c.Assert(p.RequestStatus(requestID).Processed, qt.IsFalse)
}

func TestEventSubscription(t *testing.T) {
	c := qt.New(t)
	p, _, _ := newTestProtocol(t, 1)

	ch := p.Subscribe()
	c.Assert(p.AddProvider(adminAddr, providerAddr), qt.IsNil)
	c.Assert(p.OpenBatch(adminAddr), qt.IsNil)

	ev := <-ch
	c.Assert(ev.Type, qt.Equals, EventProviderAdded)
	c.Assert(ev.Seq, qt.Equals, uint64(1))
	ev = <-ch
	c.Assert(ev.Type, qt.Equals, EventBatchOpened)
	c.Assert(ev.Seq, qt.Equals, uint64(2))

	p.Unsubscribe(ch)
	_, open := <-ch
	c.Assert(open, qt.IsFalse)

	// Events are still recorded after unsubscribe.
	c.Assert(p.CloseBatch(adminAddr), qt.IsNil)
	c.Assert(p.Events(2), qt.HasLen, 1)
}
