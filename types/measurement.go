package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Measurement is an encrypted per-provider contribution: one congestion score
// and one eco score, both opaque ciphertext handles. The cleartext values are
// never present anywhere in the node.
type Measurement struct {
	Provider      common.Address `json:"provider"      cbor:"0,keyasint,omitempty"`
	EncCongestion HexBytes       `json:"encCongestion" cbor:"1,keyasint,omitempty"`
	EncEco        HexBytes       `json:"encEco"        cbor:"2,keyasint,omitempty"`
}

// BatchRecord is the archived form of a closed batch, persisted by the event
// indexer and served by the API.
type BatchRecord struct {
	ID              uint64   `json:"id"                        cbor:"0,keyasint,omitempty"`
	SubmissionCount uint64   `json:"submissionCount"           cbor:"1,keyasint,omitempty"`
	AggCongestion   HexBytes `json:"aggCongestion"             cbor:"2,keyasint,omitempty"`
	AggEco          HexBytes `json:"aggEco"                    cbor:"3,keyasint,omitempty"`
	ClearCongestion *BigInt  `json:"clearCongestion,omitempty" cbor:"4,keyasint,omitempty"`
	ClearEco        *BigInt  `json:"clearEco,omitempty"        cbor:"5,keyasint,omitempty"`
}
