// Package protocol implements the confidential batch aggregation and
// decryption-callback state machine. Encrypted measurements from authorized
// providers are homomorphically folded into the current batch; once the
// administrator closes a batch and requests decryption, the cleartext totals
// are revealed through a single oracle callback bound to the exact ciphertext
// state that was frozen at request time.
package protocol

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/types"
	"github.com/ecopulse/aggregator/util"
)

// DefaultCooldownSeconds is the per-principal cooldown applied when the
// configuration does not set one.
const DefaultCooldownSeconds = 60

// Config carries the collaborators and initial parameters of a Protocol.
type Config struct {
	Administrator   common.Address
	Engine          AggregationEngine
	Oracle          DecryptionOracle
	CooldownSeconds int64
	// Now overrides the clock, used by tests. Defaults to time.Now.
	Now func() time.Time
}

// Protocol is the authoritative state of one aggregation instance. All entry
// points serialize on the internal mutex, so every state transition is
// atomic: a rejected call leaves no partial mutation behind.
type Protocol struct {
	mu sync.Mutex

	admin     common.Address
	providers map[common.Address]bool
	paused    bool

	limiter *rateLimiter
	batch   *batch
	// requests holds one context per issued decryption request, keyed by
	// the oracle-assigned request identifier. Contexts are never deleted:
	// a processed context is the durable record that its aggregate was
	// revealed exactly once.
	requests map[string]*DecryptionContext

	// instanceID salts every state hash so a callback for one protocol
	// instance can never be replayed against another.
	instanceID types.HexBytes

	engine AggregationEngine
	oracle DecryptionOracle
	events *eventLog
	now    func() time.Time
}

// New creates a Protocol with a closed, empty batch with id 1. Only an
// explicit OpenBatch call starts accepting submissions; the first open
// produces batch id 2.
func New(cfg Config) (*Protocol, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("missing aggregation engine")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("missing decryption oracle")
	}
	if cfg.Administrator == (common.Address{}) {
		return nil, fmt.Errorf("missing administrator address")
	}
	cooldown := cfg.CooldownSeconds
	if cooldown == 0 {
		cooldown = DefaultCooldownSeconds
	}
	if cooldown < 0 {
		return nil, ErrInvalidCooldown
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	p := &Protocol{
		admin:      cfg.Administrator,
		providers:  make(map[common.Address]bool),
		limiter:    newRateLimiter(cooldown),
		batch:      &batch{id: 1},
		requests:   make(map[string]*DecryptionContext),
		instanceID: util.RandomBytes(32),
		engine:     cfg.Engine,
		oracle:     cfg.Oracle,
		events:     &eventLog{},
		now:        now,
	}
	log.Infow("protocol initialized",
		"administrator", p.admin.Hex(),
		"cooldownSeconds", cooldown,
		"instanceID", p.instanceID.String(),
	)
	return p, nil
}

// guard helpers, called with the lock held

func (p *Protocol) requireAdmin(caller common.Address) error {
	if caller != p.admin {
		return fmt.Errorf("%w: %s", ErrNotAdministrator, caller.Hex())
	}
	return nil
}

func (p *Protocol) requireNotPaused() error {
	if p.paused {
		return ErrPaused
	}
	return nil
}

// TransferAdministrator atomically replaces the administrator.
func (p *Protocol) TransferAdministrator(caller, newAdmin common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	old := p.admin
	p.admin = newAdmin
	p.events.append(Event{
		Type:      EventAdminTransferred,
		Timestamp: p.now(),
		OldAdmin:  &old,
		NewAdmin:  &newAdmin,
	})
	log.Infow("administrator transferred", "old", old.Hex(), "new", newAdmin.Hex())
	return nil
}

// AddProvider authorizes a submitter. Adding an already-authorized provider
// is a no-op and emits no event.
func (p *Protocol) AddProvider(caller, provider common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if p.providers[provider] {
		return nil
	}
	p.providers[provider] = true
	p.events.append(Event{
		Type:      EventProviderAdded,
		Timestamp: p.now(),
		Principal: &provider,
	})
	return nil
}

// RemoveProvider revokes a submitter. Removing an unknown provider is a
// no-op and emits no event.
func (p *Protocol) RemoveProvider(caller, provider common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if !p.providers[provider] {
		return nil
	}
	p.providers[provider] = false
	p.events.append(Event{
		Type:      EventProviderRemoved,
		Timestamp: p.now(),
		Principal: &provider,
	})
	return nil
}

// Pause halts all state-mutating operations except Unpause. It fails with
// ErrAlreadyPaused when already paused.
func (p *Protocol) Pause(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if p.paused {
		return ErrAlreadyPaused
	}
	p.paused = true
	p.events.append(Event{Type: EventPaused, Timestamp: p.now(), Principal: &caller})
	log.Infow("protocol paused", "administrator", caller.Hex())
	return nil
}

// Unpause resumes operations. Unlike Pause it has no double-call guard and
// is idempotent.
func (p *Protocol) Unpause(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	p.paused = false
	p.events.append(Event{Type: EventUnpaused, Timestamp: p.now(), Principal: &caller})
	log.Infow("protocol unpaused", "administrator", caller.Hex())
	return nil
}

// SetCooldown updates the per-principal cooldown window.
func (p *Protocol) SetCooldown(caller common.Address, seconds int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	if seconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCooldown, seconds)
	}
	old := p.limiter.cooldownSeconds
	p.limiter.cooldownSeconds = seconds
	p.events.append(Event{
		Type:        EventCooldownUpdated,
		Timestamp:   p.now(),
		OldCooldown: old,
		NewCooldown: seconds,
	})
	log.Infow("cooldown updated", "old", old, "new", seconds)
	return nil
}

// Administrator returns the current administrator address.
func (p *Protocol) Administrator() common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.admin
}

// IsProvider reports whether the address is an authorized submitter.
func (p *Protocol) IsProvider(addr common.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providers[addr]
}

// Paused reports whether the protocol is paused.
func (p *Protocol) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Cooldown returns the current cooldown window in seconds.
func (p *Protocol) Cooldown() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limiter.cooldownSeconds
}

// InstanceID returns the identity bound into every state hash.
func (p *Protocol) InstanceID() types.HexBytes {
	out := make(types.HexBytes, len(p.instanceID))
	copy(out, p.instanceID)
	return out
}

// Events returns a copy of all events with sequence number greater than
// fromSeq, in order.
func (p *Protocol) Events(fromSeq uint64) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events.since(fromSeq)
}

// Subscribe returns a channel receiving every event appended after the call.
// Slow consumers lose events instead of blocking state transitions.
func (p *Protocol) Subscribe() chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events.subscribe()
}

// Unsubscribe closes and removes a channel obtained from Subscribe.
func (p *Protocol) Unsubscribe(ch chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.unsubscribe(ch)
}
