package rpc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nodemonitor/internal/entity"
	"nodemonitor/internal/pkg/apperrors"
)

// Ctl is a connection control event pushed by the client's own session
// management. The connection actor reacts to these; it never drives
// low-level redials itself.
type Ctl uint8

// Control event kinds.
const (
	CtlConnect Ctl = iota
	CtlDisconnect
)

// String returns the string representation of the control event.
func (c Ctl) String() string {
	switch c {
	case CtlConnect:
		return "connect"
	case CtlDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Client is the opaque RPC capability a connection actor drives. The
// transport behind it owns its own session management: once Connect
// has succeeded, redials after transport drops happen below this
// interface, surfaced only as Ctl events.
type Client interface {
	// Connect establishes the transport session. The first call also
	// arms the client's redial management.
	Connect(ctx context.Context) error

	// Disconnect tears the session down gracefully and disarms redial
	// management until the next Connect.
	Disconnect(ctx context.Context) error

	// TriggerAbort forcibly drops the transport without a closing
	// handshake. Best-effort fallback when Disconnect fails.
	TriggerAbort() error

	// Ping performs a minimal liveness round trip.
	Ping(ctx context.Context) error

	// GetCaps queries the node's identity, version and limits.
	GetCaps(ctx context.Context) (*entity.Caps, error)

	// GetSyncStatus reports whether the node considers itself caught
	// up with the network.
	GetSyncStatus(ctx context.Context) (bool, error)

	// GetConnections queries the node's active client and peer counts.
	GetConnections(ctx context.Context) (entity.ActiveConnections, error)

	// Control returns the stream of connect/disconnect events. The
	// channel is closed on an unrecoverable transport error, which the
	// consumer must treat as fatal.
	Control() <-chan Ctl
}

// New builds a client for the node's transport kind.
func New(node *entity.Node, logger *zap.Logger) (Client, error) {
	switch node.Transport {
	case entity.TransportWSJSON:
		return NewWSClient(node.Address, logger), nil
	case entity.TransportGRPC:
		return nil, fmt.Errorf("%w: grpc support is not currently implemented", apperrors.ErrUnsupportedTransport)
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedTransport, node.Transport)
	}
}
