package main

import (
	"context"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/aggregator"
	"github.com/ecopulse/aggregator/api"
	"github.com/ecopulse/aggregator/crypto/ecc"
	"github.com/ecopulse/aggregator/crypto/ecc/curves"
	"github.com/ecopulse/aggregator/crypto/elgamal"
	"github.com/ecopulse/aggregator/oracle"
	"github.com/ecopulse/aggregator/protocol"
	"github.com/ecopulse/aggregator/service"
	"github.com/ecopulse/aggregator/storage"
)

func main() {
	var (
		host       = flag.String("host", "0.0.0.0", "API host")
		port       = flag.Int("port", 8080, "API port")
		dataDir    = flag.String("dataDir", "./data", "data directory for the archive database")
		logLevel   = flag.String("logLevel", "info", "log level (debug, info, warn, error)")
		adminHex   = flag.String("admin", "", "administrator address (hex)")
		cooldown   = flag.Int64("cooldown", protocol.DefaultCooldownSeconds, "per-principal cooldown in seconds")
		curveType  = flag.String("curve", curves.CurveTypeBN254, "ciphertext curve (bn254 or bjj)")
		committee  = flag.Int("committee", 0, "threshold committee size (0 for single-key oracle)")
		threshold  = flag.Int("threshold", 0, "committee reconstruction threshold")
		maxMessage = flag.Uint64("maxMessage", oracle.DefaultMaxMessage, "largest decryptable total")
	)
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	if *adminHex == "" {
		log.Fatalf("missing -admin address")
	}
	admin := ethcommon.HexToAddress(*adminHex)

	kv, err := metadb.New(db.TypePebble, *dataDir)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	stg := storage.New(kv)
	defer stg.Close()

	curve := curves.New(*curveType)

	// Key material: a threshold committee when requested, otherwise a
	// single ElGamal key pair held by the oracle.
	var (
		publicKey  ecc.Point
		privateKey *big.Int
		quorum     *oracle.Committee
	)
	if *committee > 0 {
		quorum, err = oracle.NewCommittee(curve, *committee, *threshold)
		if err != nil {
			log.Fatalf("failed to set up decryption committee: %v", err)
		}
		publicKey = quorum.PublicKey()
		log.Infow("threshold committee ready", "size", *committee, "threshold", *threshold)
	} else {
		publicKey, privateKey, err = elgamal.GenerateKey(curve)
		if err != nil {
			log.Fatalf("failed to generate encryption key: %v", err)
		}
	}

	orc, err := oracle.New(oracle.Config{
		Curve:      curve,
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		Committee:  quorum,
		MaxMessage: *maxMessage,
	})
	if err != nil {
		log.Fatalf("failed to create oracle: %v", err)
	}

	prot, err := protocol.New(protocol.Config{
		Administrator:   admin,
		Engine:          aggregator.NewEngine(curve),
		Oracle:          orc,
		CooldownSeconds: *cooldown,
	})
	if err != nil {
		log.Fatalf("failed to create protocol: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := service.NewOracleDispatcher(orc, prot)
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatalf("failed to start oracle dispatcher: %v", err)
	}
	defer dispatcher.Stop()

	indexer := service.NewEventIndexer(prot, stg)
	if err := indexer.Start(ctx); err != nil {
		log.Fatalf("failed to start event indexer: %v", err)
	}
	defer indexer.Stop()

	if _, err := api.New(&api.APIConfig{
		Host:          *host,
		Port:          *port,
		Protocol:      prot,
		Storage:       stg,
		EncryptionKey: publicKey,
	}); err != nil {
		log.Fatalf("failed to start API: %v", err)
	}

	log.Infow("node running",
		"administrator", admin.Hex(),
		"oracle", orc.Address().Hex(),
		"curve", *curveType,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Infow("shutting down")
}
