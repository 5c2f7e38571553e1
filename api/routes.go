package api

// URL parameters used by the parameterized endpoints.
const (
	BatchURLParam   = "batchId"
	RequestURLParam = "requestId"
)

// Endpoints consumed by providers and observers.
const (
	PingEndpoint              = "/ping"
	BatchEndpoint             = "/batch"
	BatchArchiveEndpoint      = "/batches/{" + BatchURLParam + "}"
	BatchMeasurementsEndpoint = "/batches/{" + BatchURLParam + "}/measurements"
	EventsEndpoint            = "/events"
	EncryptionKeyEndpoint     = "/key"
	MeasurementsEndpoint      = "/measurements"
	DecryptionEndpoint        = "/decryption/{" + RequestURLParam + "}"
)

// Administrator command endpoints.
const (
	AdminOpenEndpoint      = "/admin/batches/open"
	AdminCloseEndpoint     = "/admin/batches/close"
	AdminDecryptEndpoint   = "/admin/decryption"
	AdminProvidersEndpoint = "/admin/providers"
	AdminPauseEndpoint     = "/admin/pause"
	AdminUnpauseEndpoint   = "/admin/unpause"
	AdminCooldownEndpoint  = "/admin/cooldown"
	AdminTransferEndpoint  = "/admin/transfer"
)
