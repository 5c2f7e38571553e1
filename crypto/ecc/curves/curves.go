package curves

import (
	"fmt"

	"github.com/ecopulse/aggregator/crypto/ecc"
	"github.com/ecopulse/aggregator/crypto/ecc/bjj"
	"github.com/ecopulse/aggregator/crypto/ecc/bn254"
)

const (
	CurveTypeBN254      = "bn254"
	CurveTypeBabyJubJub = "bjj"
)

// New creates a new instance of an ecc.Point implementation based on the
// provided type string. The supported types are defined as constants in this
// package. If the type is not supported, it will panic.
func New(curveType string) ecc.Point {
	switch curveType {
	case CurveTypeBN254:
		return bn254.New()
	case CurveTypeBabyJubJub:
		return bjj.New()
	default:
		panic(fmt.Sprintf("unsupported curve type: %s", curveType))
	}
}
