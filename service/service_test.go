package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/aggregator"
	"github.com/ecopulse/aggregator/crypto/ecc/curves"
	"github.com/ecopulse/aggregator/crypto/elgamal"
	"github.com/ecopulse/aggregator/oracle"
	"github.com/ecopulse/aggregator/protocol"
	"github.com/ecopulse/aggregator/storage"
)

func init() {
	log.Init("error", "stderr", nil)
}

var (
	admin    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	provider = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// waitFor polls fn until it stops returning an error or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, fn func() error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var err error
	for time.Now().Before(deadline) {
		if err = fn(); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met after %s: %v", timeout, err)
}

func TestDispatcherAndIndexer(t *testing.T) {
	c := qt.New(t)

	curve := curves.New(curves.CurveTypeBN254)
	pub, priv, err := elgamal.GenerateKey(curve)
	c.Assert(err, qt.IsNil)
	orc, err := oracle.New(oracle.Config{
		Curve:      curve,
		PrivateKey: priv,
		PublicKey:  pub,
		MaxMessage: 1 << 16,
	})
	c.Assert(err, qt.IsNil)

	p, err := protocol.New(protocol.Config{
		Administrator:   admin,
		Engine:          aggregator.NewEngine(curve),
		Oracle:          orc,
		CooldownSeconds: 1,
	})
	c.Assert(err, qt.IsNil)
	st := storage.New(metadb.NewTest(t))

	ctx := context.Background()
	dispatcher := NewOracleDispatcher(orc, p)
	c.Assert(dispatcher.Start(ctx), qt.IsNil)
	c.Assert(dispatcher.Start(ctx), qt.ErrorMatches, "service already running")
	defer dispatcher.Stop()

	indexer := NewEventIndexer(p, st)
	c.Assert(indexer.Start(ctx), qt.IsNil)
	c.Assert(indexer.Start(ctx), qt.ErrorMatches, "service already running")
	defer indexer.Stop()

	// Run one full batch lifecycle; the dispatcher delivers the callback
	// in the background.
	c.Assert(p.AddProvider(admin, provider), qt.IsNil)
	c.Assert(p.OpenBatch(admin), qt.IsNil)
	encCongestion, err := aggregator.EncryptMeasurement(pub, 10)
	c.Assert(err, qt.IsNil)
	encEco, err := aggregator.EncryptMeasurement(pub, 6)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Submit(provider, encCongestion, encEco), qt.IsNil)
	c.Assert(p.CloseBatch(admin), qt.IsNil)

	requestID, err := p.RequestDecryption(admin)
	c.Assert(err, qt.IsNil)

	waitFor(t, 5*time.Second, func() error {
		if status := p.RequestStatus(requestID); status == nil || !status.Processed {
			return errors.New("request not yet processed")
		}
		return nil
	})

	// The indexer archived the closed batch with its revealed totals.
	waitFor(t, 5*time.Second, func() error {
		rec, err := st.Batch(2)
		if err != nil {
			return err
		}
		if rec.ClearCongestion == nil || rec.ClearEco == nil {
			return errors.New("cleartext totals not yet archived")
		}
		return nil
	})
	rec, err := st.Batch(2)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.SubmissionCount, qt.Equals, uint64(1))
	c.Assert(rec.ClearCongestion.String(), qt.Equals, "10")
	c.Assert(rec.ClearEco.String(), qt.Equals, "6")

	// The accepted submission was archived under its batch.
	waitFor(t, 5*time.Second, func() error {
		measurements, err := st.Measurements(2)
		if err != nil {
			return err
		}
		if len(measurements) != 1 {
			return errors.New("measurement not yet archived")
		}
		return nil
	})
	measurements, err := st.Measurements(2)
	c.Assert(err, qt.IsNil)
	c.Assert(measurements[0].Provider, qt.Equals, provider)
	c.Assert(measurements[0].EncCongestion.String(), qt.Equals, encCongestion.String())
	c.Assert(measurements[0].EncEco.String(), qt.Equals, encEco.String())

	// The decryption context was mirrored with its final processed state.
	waitFor(t, 5*time.Second, func() error {
		ctx, err := st.DecryptionContext(requestID)
		if err != nil {
			return err
		}
		if !ctx.Processed {
			return errors.New("archived context not yet processed")
		}
		return nil
	})

	// Every emitted event reached the archive.
	waitFor(t, 5*time.Second, func() error {
		seq, err := st.LastEventSeq()
		if err != nil {
			return err
		}
		want := uint64(len(p.Events(0)))
		if seq != want {
			return errors.New("event archive lagging")
		}
		return nil
	})

	// Stop is idempotent and allows a restart.
	dispatcher.Stop()
	dispatcher.Stop()
	c.Assert(dispatcher.Start(ctx), qt.IsNil)
}

// A batch closed implicitly by opening the next one must be archived with the
// submissions and aggregates it held at closing time, even though a newer
// batch is already current when the indexer consumes the event.
func TestIndexerArchivesImplicitlyClosedBatch(t *testing.T) {
	c := qt.New(t)

	curve := curves.New(curves.CurveTypeBN254)
	pub, priv, err := elgamal.GenerateKey(curve)
	c.Assert(err, qt.IsNil)
	orc, err := oracle.New(oracle.Config{Curve: curve, PrivateKey: priv, PublicKey: pub})
	c.Assert(err, qt.IsNil)

	p, err := protocol.New(protocol.Config{
		Administrator:   admin,
		Engine:          aggregator.NewEngine(curve),
		Oracle:          orc,
		CooldownSeconds: 1,
	})
	c.Assert(err, qt.IsNil)
	st := storage.New(metadb.NewTest(t))

	indexer := NewEventIndexer(p, st)
	c.Assert(indexer.Start(context.Background()), qt.IsNil)
	defer indexer.Stop()

	c.Assert(p.AddProvider(admin, provider), qt.IsNil)
	c.Assert(p.OpenBatch(admin), qt.IsNil)
	encCongestion, err := aggregator.EncryptMeasurement(pub, 4)
	c.Assert(err, qt.IsNil)
	encEco, err := aggregator.EncryptMeasurement(pub, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Submit(provider, encCongestion, encEco), qt.IsNil)
	frozen := p.CurrentBatch()

	// Implicit close: batch 2 closes and batch 3 opens under one transition.
	c.Assert(p.OpenBatch(admin), qt.IsNil)
	c.Assert(p.CurrentBatch().ID, qt.Equals, uint64(3))

	waitFor(t, 5*time.Second, func() error {
		_, err := st.Batch(2)
		return err
	})
	rec, err := st.Batch(2)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.SubmissionCount, qt.Equals, uint64(1))
	c.Assert(rec.AggCongestion.String(), qt.Equals, frozen.AggCongestion.String())
	c.Assert(rec.AggEco.String(), qt.Equals, frozen.AggEco.String())
}
