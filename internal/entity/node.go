package entity

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
)

// NetworkID identifies the network a node participates in
// (e.g. mainnet, testnet-10).
type NetworkID string

// String returns the string representation of the NetworkID.
func (n NetworkID) String() string {
	return string(n)
}

// Service names the node software family a monitored endpoint runs.
type Service string

// String returns the string representation of the Service.
func (s Service) String() string {
	return string(s)
}

// TransportKind defines the wire transport used to reach a node.
type TransportKind string

// Constants for known transport kinds.
const (
	TransportWSJSON TransportKind = "ws-json"
	TransportGRPC   TransportKind = "grpc"
)

// PathParams groups connections that serve the same routing path:
// one transport kind on one network. The ranking layer sorts each
// group independently.
type PathParams struct {
	Transport TransportKind `json:"transport"`
	Network   NetworkID     `json:"network"`
}

// String returns the params in cache-key form.
func (p PathParams) String() string {
	return string(p.Transport) + "/" + string(p.Network)
}

// Node describes one configured remote endpoint.
type Node struct {
	UID       uint64
	Service   Service
	Address   string
	Transport TransportKind
	Network   NetworkID
}

// NewNode validates the endpoint descriptor and derives a stable UID
// from it.
func NewNode(service Service, address string, transport TransportKind, network NetworkID) (*Node, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("node address cannot be empty")
	}

	u, err := url.ParseRequestURI(address)
	if err != nil {
		return nil, fmt.Errorf("invalid node address '%s': %w", address, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch transport {
	case TransportWSJSON:
		if scheme != "ws" && scheme != "wss" {
			return nil, fmt.Errorf("node address '%s' has unsupported scheme '%s' for transport %s", address, scheme, transport)
		}
	case TransportGRPC:
		// Accepted here; client construction rejects it as unsupported.
	default:
		return nil, fmt.Errorf("unknown transport kind '%s'", transport)
	}

	if strings.TrimSpace(string(network)) == "" {
		return nil, fmt.Errorf("node network cannot be empty")
	}

	h := fnv.New64a()
	h.Write([]byte(string(service)))
	h.Write([]byte{0})
	h.Write([]byte(address))
	h.Write([]byte{0})
	h.Write([]byte(string(transport)))
	h.Write([]byte{0})
	h.Write([]byte(string(network)))

	return &Node{
		UID:       h.Sum64(),
		Service:   service,
		Address:   address,
		Transport: transport,
		Network:   network,
	}, nil
}

// Params returns the routing path this node serves.
func (n *Node) Params() PathParams {
	return PathParams{Transport: n.Transport, Network: n.Network}
}

// UIDString returns the node UID in fixed-width hex form.
func (n *Node) UIDString() string {
	return fmt.Sprintf("%016x", n.UID)
}
