package api

import (
	"encoding/binary"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/ecopulse/aggregator/crypto/ethereum"
)

// AdminCommandPayload builds the byte string an administrator signs for a
// command: the endpoint path followed by the command parameters in a fixed
// order. Binding the endpoint into the payload keeps a signature for one
// command from authorizing a different one.
func AdminCommandPayload(endpoint string, req *AdminRequest) []byte {
	msg := []byte(endpoint)
	if req.Provider != nil {
		msg = append(msg, req.Provider.Bytes()...)
	}
	if req.NewAdmin != nil {
		msg = append(msg, req.NewAdmin.Bytes()...)
	}
	var seconds [8]byte
	binary.BigEndian.PutUint64(seconds[:], uint64(req.Seconds))
	msg = append(msg, seconds[:]...)
	if req.Remove {
		msg = append(msg, 1)
	} else {
		msg = append(msg, 0)
	}
	return msg
}

// decodeAdminRequest decodes an administrator command and recovers the caller
// address from its signature. On failure it writes the error response and
// returns a nil request.
func decodeAdminRequest(w http.ResponseWriter, r *http.Request, endpoint string) (*AdminRequest, common.Address) {
	req := &AdminRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return nil, common.Address{}
	}
	caller, err := ethereum.AddrFromSignature(AdminCommandPayload(endpoint, req), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not recover caller address: %v", err).Write(w)
		return nil, common.Address{}
	}
	return req, caller
}

// openBatch closes any open batch and opens the next one.
// POST /admin/batches/open
func (a *API) openBatch(w http.ResponseWriter, r *http.Request) {
	req, caller := decodeAdminRequest(w, r, AdminOpenEndpoint)
	if req == nil {
		return
	}
	if err := a.protocol.OpenBatch(caller); err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	httpWriteJSON(w, a.protocol.CurrentBatch())
}

// closeBatch freezes the current batch.
// POST /admin/batches/close
func (a *API) closeBatch(w http.ResponseWriter, r *http.Request) {
	req, caller := decodeAdminRequest(w, r, AdminCloseEndpoint)
	if req == nil {
		return
	}
	if err := a.protocol.CloseBatch(caller); err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	httpWriteJSON(w, a.protocol.CurrentBatch())
}

// requestDecryption issues a decryption request against the closed batch.
// POST /admin/decryption
func (a *API) requestDecryption(w http.ResponseWriter, r *http.Request) {
	req, caller := decodeAdminRequest(w, r, AdminDecryptEndpoint)
	if req == nil {
		return
	}
	requestID, err := a.protocol.RequestDecryption(caller)
	if err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	httpWriteJSON(w, &DecryptionResponse{
		RequestID: requestID,
		BatchID:   a.protocol.CurrentBatch().ID,
	})
}

// setProvider adds or removes an authorized provider.
// POST /admin/providers
func (a *API) setProvider(w http.ResponseWriter, r *http.Request) {
	req, caller := decodeAdminRequest(w, r, AdminProvidersEndpoint)
	if req == nil {
		return
	}
	if req.Provider == nil {
		ErrMalformedBody.With("missing provider address").Write(w)
		return
	}
	var err error
	if req.Remove {
		err = a.protocol.RemoveProvider(caller, *req.Provider)
	} else {
		err = a.protocol.AddProvider(caller, *req.Provider)
	}
	if err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// pause halts all state-mutating operations.
// POST /admin/pause
func (a *API) pause(w http.ResponseWriter, r *http.Request) {
	req, caller := decodeAdminRequest(w, r, AdminPauseEndpoint)
	if req == nil {
		return
	}
	if err := a.protocol.Pause(caller); err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// unpause resumes operations.
// POST /admin/unpause
func (a *API) unpause(w http.ResponseWriter, r *http.Request) {
	req, caller := decodeAdminRequest(w, r, AdminUnpauseEndpoint)
	if req == nil {
		return
	}
	if err := a.protocol.Unpause(caller); err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// setCooldown updates the per-principal cooldown window.
// POST /admin/cooldown
func (a *API) setCooldown(w http.ResponseWriter, r *http.Request) {
	req, caller := decodeAdminRequest(w, r, AdminCooldownEndpoint)
	if req == nil {
		return
	}
	if err := a.protocol.SetCooldown(caller, req.Seconds); err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// transferAdministrator replaces the administrator.
// POST /admin/transfer
func (a *API) transferAdministrator(w http.ResponseWriter, r *http.Request) {
	req, caller := decodeAdminRequest(w, r, AdminTransferEndpoint)
	if req == nil {
		return
	}
	if req.NewAdmin == nil {
		ErrMalformedBody.With("missing new administrator address").Write(w)
		return
	}
	if err := a.protocol.TransferAdministrator(caller, *req.NewAdmin); err != nil {
		fromProtocolError(err).Write(w)
		return
	}
	log.Infow("administrator transferred", "new", req.NewAdmin.Hex())
	httpWriteOK(w)
}
