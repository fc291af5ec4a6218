package monitor

import "nodemonitor/internal/entity"

// Snapshot is the observable state of one connection, consumed by the
// HTTP adapter and by tests. Counters reflect the connection's own
// atomics; load and availability are computed through the canonical
// representative.
type Snapshot struct {
	UID         string               `json:"uid"`
	Address     string               `json:"address"`
	Service     entity.Service       `json:"service"`
	Transport   entity.TransportKind `json:"transport"`
	Network     entity.NetworkID     `json:"network"`
	Status      entity.Status        `json:"status"`
	Connected   bool                 `json:"connected"`
	Online      bool                 `json:"online"`
	Synced      bool                 `json:"synced"`
	Clients     uint64               `json:"clients"`
	Peers       uint64               `json:"peers"`
	Load        *float64             `json:"load,omitempty"`
	Available   bool                 `json:"available"`
	Version     string               `json:"version,omitempty"`
	DelegatesTo string               `json:"delegatesTo,omitempty"`
}

// Output is one ranked-list entry handed to the routing layer.
type Output struct {
	UID string `json:"uid"`
	URL string `json:"url"`
}

// Snapshot renders the connection's current observable state.
func (c *Connection) Snapshot() Snapshot {
	s := Snapshot{
		UID:       c.node.UIDString(),
		Address:   c.node.Address,
		Service:   c.node.Service,
		Transport: c.node.Transport,
		Network:   c.node.Network,
		Status:    c.Status(),
		Connected: c.IsConnected(),
		Online:    c.IsOnline(),
		Synced:    c.IsSynced(),
		Clients:   c.Clients(),
		Peers:     c.Peers(),
		Available: c.IsAvailable(),
	}
	if load, ok := c.Load(); ok {
		s.Load = &load
	}
	if caps := c.Caps(); caps != nil {
		s.Version = caps.Version
	}
	if !c.isCanonical() {
		s.DelegatesTo = c.Delegate().Address()
	}
	return s
}
