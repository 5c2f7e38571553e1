package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ecopulse/aggregator/crypto/ethereum"
	stg "github.com/ecopulse/aggregator/storage"
	"github.com/ecopulse/aggregator/types"
)

// submitMeasurement admits an encrypted measurement into the open batch.
// POST /measurements
func (a *API) submitMeasurement(w http.ResponseWriter, r *http.Request) {
	req := &MeasurementRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	// Recover the provider address from the signature over both handles.
	signed := append(append(types.HexBytes{}, req.EncCongestion...), req.EncEco...)
	provider, err := ethereum.AddrFromSignature(signed, req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not recover provider address: %v", err).Write(w)
		return
	}

	if err := a.protocol.Submit(provider, req.EncCongestion, req.EncEco); err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	httpWriteJSON(w, &MeasurementResponse{
		Provider: provider,
		BatchID:  a.protocol.CurrentBatch().ID,
	})
}

// currentBatch returns a snapshot of the current batch.
// GET /batch
func (a *API) currentBatch(w http.ResponseWriter, _ *http.Request) {
	httpWriteJSON(w, a.protocol.CurrentBatch())
}

// archivedBatch returns an archived batch record.
// GET /batches/{batchId}
func (a *API) archivedBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, BatchURLParam), 10, 64)
	if err != nil {
		ErrMalformedBody.Withf("invalid batch id: %v", err).Write(w)
		return
	}
	rec, err := a.storage.Batch(id)
	if err != nil {
		if errors.Is(err, stg.ErrNotFound) {
			ErrResourceNotFound.Withf("batch %d", id).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, rec)
}

// batchMeasurements returns the archived submissions of a batch in admission
// order.
// GET /batches/{batchId}/measurements
func (a *API) batchMeasurements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, BatchURLParam), 10, 64)
	if err != nil {
		ErrMalformedBody.Withf("invalid batch id: %v", err).Write(w)
		return
	}
	measurements, err := a.storage.Measurements(id)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, measurements)
}

// events returns the ordered notification stream, optionally starting after
// the given sequence number.
// GET /events?from=N
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	var fromSeq uint64
	if from := r.URL.Query().Get("from"); from != "" {
		var err error
		if fromSeq, err = strconv.ParseUint(from, 10, 64); err != nil {
			ErrMalformedBody.Withf("invalid from parameter: %v", err).Write(w)
			return
		}
	}
	httpWriteJSON(w, a.protocol.Events(fromSeq))
}

// decryptionStatus returns the decryption context for a request id.
// GET /decryption/{requestId}
func (a *API) decryptionStatus(w http.ResponseWriter, r *http.Request) {
	var requestID types.HexBytes
	if err := requestID.SetString(chi.URLParam(r, RequestURLParam)); err != nil {
		ErrMalformedBody.Withf("invalid request id: %v", err).Write(w)
		return
	}
	ctx := a.protocol.RequestStatus(requestID)
	if ctx == nil {
		ErrUnknownRequest.Withf("%s", requestID.String()).Write(w)
		return
	}
	httpWriteJSON(w, ctx)
}

// encryptionKeyHandler returns the ElGamal encryption public key submitters
// must encrypt against.
// GET /key
func (a *API) encryptionKeyHandler(w http.ResponseWriter, _ *http.Request) {
	if a.encryptionKey == nil {
		ErrResourceNotFound.With("no encryption key configured").Write(w)
		return
	}
	x, y := a.encryptionKey.Point()
	httpWriteJSON(w, &EncryptionKeyResponse{
		X: (*types.BigInt)(x),
		Y: (*types.BigInt)(y),
	})
}
