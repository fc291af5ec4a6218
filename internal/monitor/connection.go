package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nodemonitor/internal/config"
	"nodemonitor/internal/entity"
	"nodemonitor/internal/pkg/apperrors"
	"nodemonitor/internal/pkg/recovery"
	"nodemonitor/internal/rpc"
)

// shutdownAckTimeout bounds how long Stop waits for the event loop to
// acknowledge termination before treating it as a programming error.
const shutdownAckTimeout = 10 * time.Second

// Connection is the per-endpoint actor. It owns one RPC client, one
// capabilities snapshot and a set of health flags, and runs a single
// event loop reacting to periodic ticks, transport control events and
// shutdown requests.
//
// All scalar state is atomic and the snapshot/delegate references are
// replaced as whole values, so readers on other goroutines never
// observe partial updates and the loop itself needs no locking.
type Connection struct {
	cfg      config.MonitorConfig
	node     *entity.Node
	client   rpc.Client
	registry *Registry
	notify   func(entity.PathParams)
	logger   *zap.Logger

	caps     atomic.Pointer[entity.Caps]
	delegate atomic.Pointer[Connection]

	isConnected atomic.Bool
	isOnline    atomic.Bool
	isSynced    atomic.Bool
	clients     atomic.Uint64
	peers       atomic.Uint64

	shutdown chan struct{}
	stopped  chan struct{}
}

// NewConnection builds an actor for the given endpoint, constructing
// the RPC client for its transport kind. The notify callback is
// invoked whenever observable state changes so the ranking layer can
// re-sort.
func NewConnection(
	cfg config.MonitorConfig,
	node *entity.Node,
	registry *Registry,
	notify func(entity.PathParams),
	logger *zap.Logger,
) (*Connection, error) {
	client, err := rpc.New(node, logger)
	if err != nil {
		return nil, fmt.Errorf("connection for %s: %w", node.Address, err)
	}
	return newConnection(cfg, node, client, registry, notify, logger), nil
}

func newConnection(
	cfg config.MonitorConfig,
	node *entity.Node,
	client rpc.Client,
	registry *Registry,
	notify func(entity.PathParams),
	logger *zap.Logger,
) *Connection {
	return &Connection{
		cfg:      cfg,
		node:     node,
		client:   client,
		registry: registry,
		notify:   notify,
		logger:   logger.Named("Connection"),
		shutdown: make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// IsConnected reports whether the transport session is up.
func (c *Connection) IsConnected() bool { return c.isConnected.Load() }

// IsOnline reports whether the last refresh cycle succeeded.
func (c *Connection) IsOnline() bool { return c.isOnline.Load() }

// IsSynced reports whether the node last reported itself synced.
// Only meaningful while connected and online.
func (c *Connection) IsSynced() bool { return c.isSynced.Load() }

// Clients returns the most recent active client count.
func (c *Connection) Clients() uint64 { return c.clients.Load() }

// Peers returns the most recent active peer count.
func (c *Connection) Peers() uint64 { return c.peers.Load() }

// Sockets returns the combined client and peer count.
func (c *Connection) Sockets() uint64 { return c.Clients() + c.Peers() }

// Caps returns the current capabilities snapshot, or nil before first
// contact and after a hard reset.
func (c *Connection) Caps() *entity.Caps { return c.caps.Load() }

// SystemID returns the node identity from the current snapshot, or
// zero when no snapshot exists.
func (c *Connection) SystemID() uint64 {
	if caps := c.caps.Load(); caps != nil {
		return caps.SystemID
	}
	return 0
}

// Node returns the endpoint descriptor.
func (c *Connection) Node() *entity.Node { return c.node }

// Address returns the endpoint address.
func (c *Connection) Address() string { return c.node.Address }

// Params returns the routing path this connection serves.
func (c *Connection) Params() entity.PathParams { return c.node.Params() }

// NetworkID returns the network the endpoint participates in.
func (c *Connection) NetworkID() entity.NetworkID { return c.node.Network }

// isCanonical reports whether this connection represents its node
// identity itself rather than deferring to another connection.
func (c *Connection) isCanonical() bool { return c.delegate.Load() == nil }

// Delegate walks the delegation chain to its canonical root. Chains
// deeper than one hop do not occur under normal operation but must be
// tolerated.
func (c *Connection) Delegate() *Connection {
	if d := c.delegate.Load(); d != nil {
		return d.Delegate()
	}
	return c
}

// BindDelegate binds (or, with nil, unbinds) the canonical connection
// this one defers to.
func (c *Connection) BindDelegate(delegate *Connection) {
	c.delegate.Store(delegate)
}

// ResolveDelegators returns the chain of connections this one defers
// to, nearest first.
func (c *Connection) ResolveDelegators() []*Connection {
	var list []*Connection
	current := c
	for {
		next := current.delegate.Load()
		if next == nil {
			return list
		}
		list = append(list, next)
		current = next
	}
}

// Score is the value the ranking layer sorts on: the canonical
// representative's combined socket count. A delegating connection
// always reports its canonical peer's score, so duplicate addresses
// never compete against each other.
func (c *Connection) Score() uint64 {
	return c.Delegate().Sockets()
}

// Load returns the canonical representative's client count as a
// fraction of its advertised capacity. The second return value is
// false when no capabilities snapshot exists.
func (c *Connection) Load() (float64, bool) {
	d := c.Delegate()
	caps := d.caps.Load()
	if caps == nil || caps.Capacity == 0 {
		return 0, false
	}
	return float64(d.Clients()) / float64(caps.Capacity), true
}

// IsAvailable reports whether this endpoint can be handed to a client:
// directly connected, canonical representative online with a known
// capability snapshot, and capacity headroom on the canonical
// counters.
func (c *Connection) IsAvailable() bool {
	d := c.Delegate()
	caps := d.caps.Load()
	if !c.IsConnected() || !d.IsOnline() || caps == nil {
		return false
	}
	clients := d.Clients()
	peers := d.Peers()
	return clients < caps.ClientsLimit && clients+peers < caps.FDLimit
}

// Status derives the human-readable connection state.
func (c *Connection) Status() entity.Status {
	switch {
	case !c.IsConnected():
		return entity.StatusOffline
	case !c.isCanonical():
		return entity.StatusDelegating
	case c.IsSynced():
		return entity.StatusOnline
	default:
		return entity.StatusSyncing
	}
}

// String renders the connection in the verbose log line form
// [system:uid] [clients] [load] address.
func (c *Connection) String() string {
	load := "n/a  "
	if l, ok := c.Load(); ok {
		load = fmt.Sprintf("%1.2f%%", l*100)
	}
	return fmt.Sprintf("[%016x:%016x] [%4d] [%7s] %s",
		c.SystemID(), c.node.UID, c.Clients(), load, c.node.Address)
}

// Start establishes the initial transport session and launches the
// event loop. A first-connect failure is returned to the caller and
// the loop is never entered.
func (c *Connection) Start(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}
	recovery.Go(c.logger, "connection "+c.node.Address, func() {
		c.run(ctx)
	})
	return nil
}

// Stop requests event loop termination and blocks until the loop has
// acknowledged it. A loop that fails to acknowledge within the grace
// window indicates a broken shutdown path and panics.
func (c *Connection) Stop() {
	select {
	case c.shutdown <- struct{}{}:
	case <-c.stopped:
		return
	}

	select {
	case <-c.stopped:
	case <-time.After(shutdownAckTimeout):
		panic("connection " + c.node.Address + ": event loop failed to acknowledge shutdown")
	}
}

// isStopped reports whether the event loop has terminated.
func (c *Connection) isStopped() bool {
	select {
	case <-c.stopped:
		return true
	default:
		return false
	}
}

func (c *Connection) connect(ctx context.Context) error {
	if err := c.client.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrTransportConnect, c.node.Address, err)
	}
	return nil
}

// hardReset recovers a possibly wedged session: graceful disconnect
// with a forced abort fallback, unconditional snapshot clear (forcing
// re-identification on the next refresh), then reconnect.
func (c *Connection) hardReset(ctx context.Context) error {
	if c.isConnected.Load() {
		if err := c.client.Disconnect(ctx); err != nil {
			c.logger.Warn("Graceful disconnect failed, forcing abort",
				zap.String("address", c.node.Address), zap.Error(err))
			_ = c.client.TriggerAbort()
		} else {
			c.logger.Info("Graceful disconnect for scheduled reset",
				zap.String("address", c.node.Address))
		}
	}
	c.caps.Store(nil)
	return c.client.Connect(ctx)
}

// run is the actor's event loop. It exits on a shutdown request or on
// control channel breakage; either way the stopped channel is closed
// as the termination acknowledgment.
func (c *Connection) run(ctx context.Context) {
	defer close(c.stopped)

	ctl := c.client.Control()
	timer := time.NewTimer(c.tickInterval())
	defer timer.Stop()

	var lastConnect time.Time

	for {
		select {
		case <-timer.C:
			if c.cfg.TTLEnabled && !lastConnect.IsZero() && time.Since(lastConnect) > c.cfg.TTL {
				lastConnect = time.Time{}
				if err := c.hardReset(ctx); err != nil {
					c.logger.Error("Hard reset failed",
						zap.String("address", c.node.Address), zap.Error(err))
				}
				timer.Reset(c.tickInterval())
				continue
			}

			if c.isConnected.Load() {
				wasOnline := c.isOnline.Load()
				err := c.updateState(ctx)
				online := err == nil
				c.isOnline.Store(online)

				if online != wasOnline {
					if online {
						c.logger.Info("Online", zap.String("address", c.node.Address))
					} else {
						c.logger.Error("Offline",
							zap.String("address", c.node.Address), zap.Error(err))
					}
					c.scheduleSort()
				}
			}
			timer.Reset(c.tickInterval())

		case msg, ok := <-ctl:
			if !ok {
				c.logger.Error("Control channel closed, terminating event loop",
					zap.String("address", c.node.Address),
					zap.Error(apperrors.ErrControlChannelClosed))
				return
			}

			switch msg {
			case rpc.CtlConnect:
				lastConnect = time.Now()
				if c.cfg.Verbose {
					c.logger.Info("Connected",
						zap.String("address", c.node.Address),
						zap.Float64("ttlHours", c.cfg.TTL.Hours()))
				} else {
					c.logger.Info("Connected", zap.String("address", c.node.Address))
				}

				c.isConnected.Store(true)

				if c.caps.Load() != nil {
					if err := c.updateCaps(ctx); err != nil {
						c.logger.Warn("Capability refresh on reconnect failed",
							zap.String("address", c.node.Address), zap.Error(err))
					}
				}

				c.isOnline.Store(c.updateState(ctx) == nil)
				c.scheduleSort()

			case rpc.CtlDisconnect:
				c.isConnected.Store(false)
				c.isOnline.Store(false)
				lastConnect = time.Time{}
				c.scheduleSort()
				c.logger.Error("Disconnected", zap.String("address", c.node.Address))
			}

		case <-c.shutdown:
			return
		}
	}
}

// tickInterval returns the refresh period for the connection's current
// role: short keep-warm pings while delegating, the full poll period
// while canonical.
func (c *Connection) tickInterval() time.Duration {
	if !c.isCanonical() {
		return c.cfg.PingInterval
	}
	return c.cfg.PollInterval
}

// updateCaps re-queries capabilities after a reconnect, preserving the
// prior identity and adopting the freshly reported version. Identity
// is not re-resolved here; that happens only on the first snapshot of
// a capability epoch.
func (c *Connection) updateCaps(ctx context.Context) error {
	prev := c.caps.Load()
	if prev == nil {
		return nil
	}
	fresh, err := c.client.GetCaps(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrStatusQuery, c.node.Address, err)
	}
	c.caps.Store(prev.WithVersion(fresh.Version))
	return nil
}

// updateState is one refresh cycle. A nil return means the connection
// is confirmed healthy; any error flips it offline in the caller.
func (c *Connection) updateState(ctx context.Context) error {
	if !c.isCanonical() {
		// Delegating connections only keep the remote session warm.
		// Liveness degradation is detected through the control
		// channel, not through ping failure.
		_ = c.client.Ping(ctx)
		return nil
	}

	if c.caps.Load() == nil {
		caps, err := c.client.GetCaps(ctx)
		if err != nil {
			c.logger.Error("Capabilities query failed",
				zap.String("connection", c.String()), zap.Error(err))
			return fmt.Errorf("%w: %s: %v", apperrors.ErrStatusQuery, c.node.Address, err)
		}
		c.caps.Store(caps)
		c.resolveDelegate(caps.SystemID)
	}

	synced, err := c.client.GetSyncStatus(ctx)
	if err != nil {
		c.logger.Error("Sync state query failed",
			zap.String("connection", c.String()), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", apperrors.ErrSyncQuery, c.node.Address, err)
	}

	wasSynced := c.isSynced.Swap(synced)
	if !synced {
		if synced != wasSynced {
			c.logger.Warn("Node lost sync", zap.String("connection", c.String()))
		}
		return fmt.Errorf("%w: %s", apperrors.ErrNotSynced, c.node.Address)
	}

	counts, err := c.client.GetConnections(ctx)
	if err != nil {
		c.logger.Error("Active connection count query failed",
			zap.String("connection", c.String()), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", apperrors.ErrMetricsQuery, c.node.Address, err)
	}

	prevClients := c.clients.Swap(counts.Clients)
	prevPeers := c.peers.Swap(counts.Peers)
	if c.cfg.Verbose && (counts.Clients != prevClients || counts.Peers != prevPeers) {
		c.logger.Info("Clients", zap.String("connection", c.String()))
	}
	return nil
}

// resolveDelegate binds this connection to the canonical connection
// for its identity, or registers it as the canonical one.
func (c *Connection) resolveDelegate(systemID uint64) {
	key := entity.DelegateKey{SystemID: systemID, Network: c.node.Network}
	if canonical := c.registry.Resolve(key, c); canonical != nil {
		c.logger.Info("Duplicate node identity, deferring to canonical connection",
			zap.Stringer("identity", key),
			zap.String("address", c.node.Address),
			zap.String("canonical", canonical.Address()))
		c.BindDelegate(canonical)
	} else {
		c.BindDelegate(nil)
	}
}

// scheduleSort notifies the ranking layer that observable state
// changed.
func (c *Connection) scheduleSort() {
	if c.notify != nil {
		c.notify(c.node.Params())
	}
}
