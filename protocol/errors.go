package protocol

import "errors"

// Typed rejection errors returned by the protocol entry points. Every failure
// is one of these sentinels (possibly wrapped with context), so callers can
// branch with errors.Is and distinguish "retry later" conditions from
// authorization failures and integrity violations.
var (
	// Authorization
	ErrNotAdministrator       = errors.New("caller is not the administrator")
	ErrNotAuthorizedSubmitter = errors.New("caller is not an authorized provider")

	// Lifecycle
	ErrPaused          = errors.New("protocol is paused")
	ErrAlreadyPaused   = errors.New("protocol is already paused")
	ErrBatchNotOpen    = errors.New("current batch is not in the required state")
	ErrInvalidBatchID  = errors.New("request targets a batch that is no longer current")
	ErrNoDataToDecrypt = errors.New("batch has no submissions to decrypt")

	// Rate limit
	ErrCooldownActive = errors.New("cooldown period still active")

	// Integrity
	ErrReplayAttempt  = errors.New("decryption result already consumed")
	ErrStateMismatch  = errors.New("aggregate state changed since the decryption request")
	ErrUnknownRequest = errors.New("unknown decryption request")

	// Proof
	ErrInvalidProof      = errors.New("decryption proof verification failed")
	ErrInvalidCiphertext = errors.New("ciphertext handle is not well formed")

	// Validation
	ErrInvalidCooldown = errors.New("cooldown must be positive")
)
