package protocol

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ActionClass separates the two independently rate-limited action classes.
type ActionClass uint8

const (
	ActionSubmit ActionClass = iota
	ActionDecrypt
)

type cooldownKey struct {
	principal common.Address
	class     ActionClass
}

// rateLimiter enforces a per-(principal, action class) cooldown. The check
// and the recording are split so that a rejected call never consumes the
// principal's slot: record runs only once the whole call is admitted.
type rateLimiter struct {
	cooldownSeconds int64
	last            map[cooldownKey]int64
}

func newRateLimiter(cooldownSeconds int64) *rateLimiter {
	return &rateLimiter{
		cooldownSeconds: cooldownSeconds,
		last:            make(map[cooldownKey]int64),
	}
}

// check fails with ErrCooldownActive if now is before the end of the cooldown
// window started by the principal's previous action of the same class. An
// action at exactly lastAction+cooldown is admitted.
func (r *rateLimiter) check(principal common.Address, class ActionClass, now int64) error {
	last, ok := r.last[cooldownKey{principal, class}]
	if !ok {
		return nil
	}
	if now < last+r.cooldownSeconds {
		remaining := last + r.cooldownSeconds - now
		return fmt.Errorf("%w: %ds remaining", ErrCooldownActive, remaining)
	}
	return nil
}

// record stores now as the principal's last action time for the class.
func (r *rateLimiter) record(principal common.Address, class ActionClass, now int64) {
	r.last[cooldownKey{principal, class}] = now
}
