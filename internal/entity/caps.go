package entity

import "fmt"

// Caps is the capabilities snapshot of a remote node: its identity,
// software version and advertised limits, as of the last successful
// query. A snapshot is never mutated in place; refreshes replace it
// wholesale and a hard reset clears it entirely.
type Caps struct {
	SystemID     uint64 `json:"systemId"`
	Version      string `json:"version"`
	Capacity     uint64 `json:"capacity"`
	ClientsLimit uint64 `json:"clientsLimit"`
	FDLimit      uint64 `json:"fdLimit"`
}

// WithVersion returns a copy of the snapshot carrying a freshly
// reported version. Used on reconnect, where the node identity is
// assumed unchanged for the same address.
func (c *Caps) WithVersion(version string) *Caps {
	next := *c
	next.Version = version
	return &next
}

// DelegateKey identifies a remote node independently of how many
// configured addresses point at it.
type DelegateKey struct {
	SystemID uint64
	Network  NetworkID
}

// String returns the key in log-friendly form.
func (k DelegateKey) String() string {
	return fmt.Sprintf("%016x:%s", k.SystemID, k.Network)
}

// ActiveConnections holds the most recent active connection counts
// reported by a node.
type ActiveConnections struct {
	Clients uint64 `json:"clients"`
	Peers   uint64 `json:"peers"`
}
