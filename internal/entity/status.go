package entity

// Status is the derived, human-readable state of a monitored
// connection. It is never stored; it is computed from the connection
// flags and the delegate binding.
type Status string

// Constants for connection statuses.
const (
	// StatusOffline means the transport is not connected.
	StatusOffline Status = "offline"

	// StatusDelegating means the connection is bound to a canonical
	// peer representing the same node identity and defers its load and
	// score reporting to it.
	StatusDelegating Status = "delegating"

	// StatusSyncing means the connection is canonical but the node has
	// not yet reported itself caught up with the network.
	StatusSyncing Status = "syncing"

	// StatusOnline means the connection is canonical and the node is
	// synced.
	StatusOnline Status = "online"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}
