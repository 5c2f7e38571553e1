package api

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/ecopulse/aggregator/types"
)

// MeasurementRequest is the payload for submitting an encrypted measurement.
// The provider address is recovered from the signature over the concatenated
// ciphertext handles, so a submission cannot be attributed to someone else.
type MeasurementRequest struct {
	EncCongestion types.HexBytes `json:"encCongestion"`
	EncEco        types.HexBytes `json:"encEco"`
	Signature     types.HexBytes `json:"signature"`
}

// MeasurementResponse confirms an accepted submission.
type MeasurementResponse struct {
	Provider common.Address `json:"provider"`
	BatchID  uint64         `json:"batchId"`
}

// AdminRequest is the common payload for administrator commands. The caller
// is recovered from the signature over the command endpoint and parameters,
// the same scheme measurement submitters use; the protocol then rejects any
// caller that is not the current administrator.
type AdminRequest struct {
	Provider  *common.Address `json:"provider,omitempty"`
	NewAdmin  *common.Address `json:"newAdmin,omitempty"`
	Seconds   int64           `json:"seconds,omitempty"`
	Remove    bool            `json:"remove,omitempty"`
	Signature types.HexBytes  `json:"signature"`
}

// DecryptionResponse confirms an issued decryption request.
type DecryptionResponse struct {
	RequestID types.HexBytes `json:"requestId"`
	BatchID   uint64         `json:"batchId"`
}

// EncryptionKeyResponse carries the affine coordinates of the ElGamal
// encryption public key.
type EncryptionKeyResponse struct {
	X *types.BigInt `json:"x"`
	Y *types.BigInt `json:"y"`
}
