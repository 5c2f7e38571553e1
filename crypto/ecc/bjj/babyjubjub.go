package bjj

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/fxamacker/cbor/v2"
	babyjubjub "github.com/iden3/go-iden3-crypto/babyjub"

	curve "github.com/ecopulse/aggregator/crypto/ecc"
	"github.com/ecopulse/aggregator/types"
)

const CurveType = "bjj"

// BJJ is the affine representation of a BabyJubJub group element.
type BJJ struct {
	inner *babyjubjub.Point
	lock  sync.Mutex
}

// New creates a new BJJ point (identity element by default).
func New() curve.Point {
	return &BJJ{inner: babyjubjub.NewPoint()}
}

func (g *BJJ) New() curve.Point {
	return &BJJ{inner: babyjubjub.NewPoint()}
}

func (g *BJJ) Order() *big.Int {
	return babyjubjub.SubOrder
}

func (g *BJJ) Add(a, b curve.Point) {
	g.inner = g.inner.Projective().Add(a.(*BJJ).inner.Projective(), b.(*BJJ).inner.Projective()).Affine()
}

func (g *BJJ) SafeAdd(a, b curve.Point) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.Add(a, b)
}

func (g *BJJ) ScalarMult(a curve.Point, scalar *big.Int) {
	g.inner = g.inner.Mul(scalar, a.(*BJJ).inner)
}

func (g *BJJ) ScalarBaseMult(scalar *big.Int) {
	g.inner = g.inner.Mul(scalar, babyjubjub.B8)
}

func (g *BJJ) Marshal() []byte {
	b := g.inner.Compress()
	return b[:]
}

func (g *BJJ) Unmarshal(buf []byte) error {
	b32 := [32]byte{}
	copy(b32[:], buf)
	_, err := g.inner.Decompress(b32)
	return err
}

func (g *BJJ) MarshalJSON() ([]byte, error) {
	return json.Marshal([]types.BigInt{types.BigInt(*g.inner.X), types.BigInt(*g.inner.Y)})
}

func (g *BJJ) UnmarshalJSON(buf []byte) error {
	if g.inner == nil {
		g.inner = babyjubjub.NewPoint()
	}
	var coords []types.BigInt
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	g.inner.X = coords[0].MathBigInt()
	g.inner.Y = coords[1].MathBigInt()
	return g.validate()
}

func (g *BJJ) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([]*big.Int{g.inner.X, g.inner.Y})
}

func (g *BJJ) UnmarshalCBOR(buf []byte) error {
	if g.inner == nil {
		g.inner = babyjubjub.NewPoint()
	}
	var coords []*big.Int
	if err := cbor.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	g.inner.X = coords[0]
	g.inner.Y = coords[1]
	return g.validate()
}

func (g *BJJ) Equal(a curve.Point) bool {
	return g.inner.X.Cmp(a.(*BJJ).inner.X) == 0 && g.inner.Y.Cmp(a.(*BJJ).inner.Y) == 0
}

func (g *BJJ) Neg(a curve.Point) {
	proj := a.(*BJJ).inner.Projective()
	proj.X = proj.X.Neg(proj.X)
	aff := proj.Affine()
	g.inner.X = g.inner.X.Set(aff.X)
	g.inner.Y = g.inner.Y.Set(aff.Y)
}

func (g *BJJ) SetZero() {
	p := g.inner.Projective()
	p.X.SetZero()
	p.Y.SetOne()
	p.Z.SetOne()
	g.inner = p.Affine()
}

func (g *BJJ) Set(a curve.Point) {
	g.inner.X = g.inner.X.Set(a.(*BJJ).inner.X)
	g.inner.Y = g.inner.Y.Set(a.(*BJJ).inner.Y)
}

func (g *BJJ) SetGenerator() {
	gen := babyjubjub.B8
	g.inner.X = g.inner.X.Set(gen.X)
	g.inner.Y = g.inner.Y.Set(gen.Y)
}

func (g *BJJ) String() string {
	return fmt.Sprintf("%s,%s", g.inner.X.String(), g.inner.Y.String())
}

func (g *BJJ) Point() (*big.Int, *big.Int) {
	return g.inner.X, g.inner.Y
}

func (g *BJJ) SetPoint(x, y *big.Int) (curve.Point, error) {
	p := &BJJ{inner: babyjubjub.NewPoint()}
	p.inner.X = p.inner.X.Set(x)
	p.inner.Y = p.inner.Y.Set(y)
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// validate rejects coordinate pairs that are not in the prime-order subgroup.
func (g *BJJ) validate() error {
	if !g.inner.InCurve() {
		return fmt.Errorf("coordinates are not on babyjubjub")
	}
	if !g.inner.InSubGroup() {
		return fmt.Errorf("coordinates are not in the babyjubjub subgroup")
	}
	return nil
}

func (g *BJJ) Type() string {
	return CurveType
}
