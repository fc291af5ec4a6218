package apperrors

import "errors"

// Standard application errors
var (
	// ErrTransportConnect is returned when establishing the transport
	// session fails. For a fresh connection this is fatal to starting
	// the actor; mid-loop reconnects are the transport's own business.
	ErrTransportConnect = errors.New("transport connect failed")

	// ErrControlChannelClosed is returned when the RPC client's
	// connect/disconnect notification stream breaks. Fatal to the
	// affected connection's event loop.
	ErrControlChannelClosed = errors.New("rpc control channel closed")

	// ErrStatusQuery is returned when the capabilities query fails
	// during a refresh cycle.
	ErrStatusQuery = errors.New("capabilities query failed")

	// ErrSyncQuery is returned when the sync state query fails during
	// a refresh cycle.
	ErrSyncQuery = errors.New("sync state query failed")

	// ErrNotSynced is returned when the node reports it has not caught
	// up with the network. The connection stays connected but is not
	// yet useful.
	ErrNotSynced = errors.New("node is not synced")

	// ErrMetricsQuery is returned when the active connection count
	// query fails while the node is synced.
	ErrMetricsQuery = errors.New("active connection count query failed")

	// ErrUnsupportedTransport is returned when a node is configured
	// with a transport kind no client implementation exists for.
	ErrUnsupportedTransport = errors.New("unsupported transport kind")

	// ErrExternalServiceFailure is returned when an interaction with a
	// remote node fails for a reason other than a timeout.
	ErrExternalServiceFailure = errors.New("external service interaction failed")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timed out")
)
