package monitor

import (
	"context"
	"sort"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"nodemonitor/internal/config"
	"nodemonitor/internal/entity"
	"nodemonitor/internal/pkg/recovery"
)

const sortQueueSize = 32

// Monitor owns one connection actor per configured endpoint, the
// shared identity registry, and the sort scheduler that keeps a
// ranked, capacity-filtered endpoint list per routing path.
type Monitor struct {
	cfg    config.Config
	logger *zap.Logger

	registry *Registry

	mu          sync.RWMutex
	connections map[entity.PathParams][]*Connection

	ranked *gocache.Cache

	sortCh  chan entity.PathParams
	stop    chan struct{}
	stopped chan struct{}
}

// New creates a monitor. No connections exist until Start.
func New(cfg config.Config, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:         cfg,
		logger:      logger.Named("Monitor"),
		registry:    NewRegistry(),
		connections: make(map[entity.PathParams][]*Connection),
		ranked: gocache.New(
			cfg.Cache.DefaultExpiration,
			cfg.Cache.CleanupInterval,
		),
		sortCh:  make(chan entity.PathParams, sortQueueSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Registry exposes the shared identity registry.
func (m *Monitor) Registry() *Registry {
	return m.registry
}

// Start constructs and starts one actor per node and launches the
// sort scheduler. A node whose client cannot be constructed is a
// configuration error and fails startup; a node whose first connect
// fails is logged and dropped, leaving its siblings untouched.
func (m *Monitor) Start(ctx context.Context, nodes []*entity.Node) error {
	for _, node := range nodes {
		conn, err := NewConnection(m.cfg.Monitor, node, m.registry, m.ScheduleSort, m.logger)
		if err != nil {
			return err
		}
		if err := conn.Start(ctx); err != nil {
			m.logger.Error("Connection failed to start",
				zap.String("address", node.Address), zap.Error(err))
			continue
		}

		params := node.Params()
		m.mu.Lock()
		m.connections[params] = append(m.connections[params], conn)
		m.mu.Unlock()

		m.logger.Info("Monitoring node",
			zap.String("address", node.Address),
			zap.String("network", node.Network.String()),
			zap.String("transport", string(node.Transport)))
	}

	recovery.Go(m.logger, "sort scheduler", m.sortLoop)
	return nil
}

// Stop halts the sort scheduler and then every connection actor,
// blocking until each has acknowledged shutdown.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.stopped

	m.mu.RLock()
	var conns []*Connection
	for _, group := range m.connections {
		conns = append(conns, group...)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		conn.Stop()
	}
	m.logger.Info("Monitor stopped", zap.Int("connections", len(conns)))
}

// ScheduleSort queues a re-rank of the given routing path. Called by
// connection actors on every observable state change; safe from any
// goroutine and never blocks the caller.
func (m *Monitor) ScheduleSort(params entity.PathParams) {
	select {
	case m.sortCh <- params:
	default:
		// A re-rank for some path is already queued; the next run
		// reads fresh state anyway.
	}
}

func (m *Monitor) sortLoop() {
	defer close(m.stopped)
	for {
		select {
		case params := <-m.sortCh:
			m.rank(params)
		case <-m.stop:
			return
		}
	}
}

// rank recomputes the ranked endpoint list for one routing path and
// refreshes the cache the HTTP adapter reads through. Only canonical,
// available connections are ranked; delegating ones would duplicate
// their canonical peer's slot.
func (m *Monitor) rank(params entity.PathParams) []Output {
	m.mu.RLock()
	conns := append([]*Connection(nil), m.connections[params]...)
	m.mu.RUnlock()

	sort.SliceStable(conns, func(i, j int) bool {
		ai, aj := conns[i].IsAvailable(), conns[j].IsAvailable()
		if ai != aj {
			return ai
		}
		return conns[i].Score() < conns[j].Score()
	})

	outputs := make([]Output, 0, len(conns))
	for _, conn := range conns {
		if !conn.isCanonical() || !conn.IsAvailable() {
			continue
		}
		outputs = append(outputs, Output{UID: conn.node.UIDString(), URL: conn.Address()})
	}

	m.ranked.Set(params.String(), outputs, gocache.DefaultExpiration)
	return outputs
}

// Ranked returns the cached ranked endpoint list for a routing path,
// recomputing it on a cache miss.
func (m *Monitor) Ranked(params entity.PathParams) []Output {
	if x, found := m.ranked.Get(params.String()); found {
		if outputs, ok := x.([]Output); ok {
			return outputs
		}
	}
	return m.rank(params)
}

// Snapshots returns the observable state of every connection, sorted
// by address for stable output.
func (m *Monitor) Snapshots() []Snapshot {
	m.mu.RLock()
	var conns []*Connection
	for _, group := range m.connections {
		conns = append(conns, group...)
	}
	m.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool {
		return conns[i].Address() < conns[j].Address()
	})

	snapshots := make([]Snapshot, 0, len(conns))
	for _, conn := range conns {
		snapshots = append(snapshots, conn.Snapshot())
	}
	return snapshots
}
