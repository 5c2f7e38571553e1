// Package api exposes the protocol's observable surface over HTTP: batch
// snapshots, the archived event stream, decryption context status and the
// administrator commands.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/crypto/ecc"
	"github.com/ecopulse/aggregator/protocol"
	stg "github.com/ecopulse/aggregator/storage"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host          string
	Port          int
	Protocol      *protocol.Protocol
	Storage       *stg.Storage
	EncryptionKey ecc.Point
}

// API type represents the API HTTP server.
type API struct {
	router        *chi.Mux
	protocol      *protocol.Protocol
	storage       *stg.Storage
	encryptionKey ecc.Point
}

// New creates a new API instance with the given configuration and starts the
// HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Protocol == nil {
		return nil, fmt.Errorf("missing protocol instance")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	a := &API{
		protocol:      conf.Protocol,
		storage:       conf.Storage,
		encryptionKey: conf.EncryptionKey,
	}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes.
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	a.router.Get(BatchEndpoint, a.currentBatch)
	a.router.Get(BatchArchiveEndpoint, a.archivedBatch)
	a.router.Get(BatchMeasurementsEndpoint, a.batchMeasurements)
	a.router.Get(EventsEndpoint, a.events)
	a.router.Get(EncryptionKeyEndpoint, a.encryptionKeyHandler)
	a.router.Get(DecryptionEndpoint, a.decryptionStatus)
	a.router.Post(MeasurementsEndpoint, a.submitMeasurement)
	a.router.Post(AdminOpenEndpoint, a.openBatch)
	a.router.Post(AdminCloseEndpoint, a.closeBatch)
	a.router.Post(AdminDecryptEndpoint, a.requestDecryption)
	a.router.Post(AdminProvidersEndpoint, a.setProvider)
	a.router.Post(AdminPauseEndpoint, a.pause)
	a.router.Post(AdminUnpauseEndpoint, a.unpause)
	a.router.Post(AdminCooldownEndpoint, a.setCooldown)
	a.router.Post(AdminTransferEndpoint, a.transferAdministrator)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
