//nolint:lll
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ecopulse/aggregator/protocol"
)

// Error codes in the 40001-49999 range are the caller's fault and return an
// HTTP 4xx status; codes 50001-59999 are the server's fault and return 5xx.
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXX or 5XXX.
var (
	ErrResourceNotFound = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody    = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}

	ErrNotAdministrator       = Error{Code: 40101, HTTPstatus: http.StatusForbidden, Err: protocol.ErrNotAdministrator}
	ErrNotAuthorizedSubmitter = Error{Code: 40102, HTTPstatus: http.StatusForbidden, Err: protocol.ErrNotAuthorizedSubmitter}

	ErrPaused          = Error{Code: 40201, HTTPstatus: http.StatusConflict, Err: protocol.ErrPaused}
	ErrAlreadyPaused   = Error{Code: 40202, HTTPstatus: http.StatusConflict, Err: protocol.ErrAlreadyPaused}
	ErrBatchNotOpen    = Error{Code: 40203, HTTPstatus: http.StatusConflict, Err: protocol.ErrBatchNotOpen}
	ErrInvalidBatchID  = Error{Code: 40204, HTTPstatus: http.StatusConflict, Err: protocol.ErrInvalidBatchID}
	ErrNoDataToDecrypt = Error{Code: 40205, HTTPstatus: http.StatusConflict, Err: protocol.ErrNoDataToDecrypt}

	ErrCooldownActive = Error{Code: 42901, HTTPstatus: http.StatusTooManyRequests, Err: protocol.ErrCooldownActive}

	ErrReplayAttempt  = Error{Code: 40901, HTTPstatus: http.StatusConflict, Err: protocol.ErrReplayAttempt}
	ErrStateMismatch  = Error{Code: 40902, HTTPstatus: http.StatusConflict, Err: protocol.ErrStateMismatch}
	ErrUnknownRequest = Error{Code: 40903, HTTPstatus: http.StatusNotFound, Err: protocol.ErrUnknownRequest}

	ErrInvalidCiphertext = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: protocol.ErrInvalidCiphertext}
	ErrInvalidProof      = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: protocol.ErrInvalidProof}
	ErrInvalidCooldown   = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: protocol.ErrInvalidCooldown}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)

// fromProtocolError maps a protocol rejection to its API error, preserving
// the typed taxonomy so clients can branch on the code.
func fromProtocolError(err error) Error {
	switch {
	case errors.Is(err, protocol.ErrNotAdministrator):
		return ErrNotAdministrator.WithErr(err)
	case errors.Is(err, protocol.ErrNotAuthorizedSubmitter):
		return ErrNotAuthorizedSubmitter.WithErr(err)
	case errors.Is(err, protocol.ErrAlreadyPaused):
		return ErrAlreadyPaused
	case errors.Is(err, protocol.ErrPaused):
		return ErrPaused
	case errors.Is(err, protocol.ErrBatchNotOpen):
		return ErrBatchNotOpen.WithErr(err)
	case errors.Is(err, protocol.ErrInvalidBatchID):
		return ErrInvalidBatchID.WithErr(err)
	case errors.Is(err, protocol.ErrNoDataToDecrypt):
		return ErrNoDataToDecrypt.WithErr(err)
	case errors.Is(err, protocol.ErrCooldownActive):
		return ErrCooldownActive.WithErr(err)
	case errors.Is(err, protocol.ErrReplayAttempt):
		return ErrReplayAttempt.WithErr(err)
	case errors.Is(err, protocol.ErrStateMismatch):
		return ErrStateMismatch.WithErr(err)
	case errors.Is(err, protocol.ErrUnknownRequest):
		return ErrUnknownRequest.WithErr(err)
	case errors.Is(err, protocol.ErrInvalidCiphertext):
		return ErrInvalidCiphertext.WithErr(err)
	case errors.Is(err, protocol.ErrInvalidProof):
		return ErrInvalidProof.WithErr(err)
	case errors.Is(err, protocol.ErrInvalidCooldown):
		return ErrInvalidCooldown.WithErr(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
