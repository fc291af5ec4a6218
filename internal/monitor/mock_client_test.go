package monitor

import (
	"context"
	"sync"
	"sync/atomic"

	"nodemonitor/internal/entity"
	"nodemonitor/internal/rpc"
)

// Compile-time check
var _ rpc.Client = (*mockClient)(nil)

// mockClient is a scripted rpc.Client for actor tests. Responses are
// set through the mutators; control events are pushed with pushCtl.
type mockClient struct {
	mu sync.Mutex

	connectErr    error
	disconnectErr error
	pingErr       error

	caps     entity.Caps
	capsErr  error
	synced   bool
	syncErr  error
	conns    entity.ActiveConnections
	connsErr error

	connectCalls    atomic.Int64
	disconnectCalls atomic.Int64
	abortCalls      atomic.Int64
	pingCalls       atomic.Int64
	capsCalls       atomic.Int64

	ctl chan rpc.Ctl
}

func newMockClient() *mockClient {
	return &mockClient{ctl: make(chan rpc.Ctl, 8)}
}

func (m *mockClient) pushCtl(ev rpc.Ctl) {
	m.ctl <- ev
}

func (m *mockClient) setCaps(caps entity.Caps, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps = caps
	m.capsErr = err
}

func (m *mockClient) setSync(synced bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = synced
	m.syncErr = err
}

func (m *mockClient) setConns(conns entity.ActiveConnections, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns = conns
	m.connsErr = err
}

func (m *mockClient) setDisconnectErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectErr = err
}

func (m *mockClient) Connect(_ context.Context) error {
	m.connectCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectErr
}

func (m *mockClient) Disconnect(_ context.Context) error {
	m.disconnectCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectErr
}

func (m *mockClient) TriggerAbort() error {
	m.abortCalls.Add(1)
	return nil
}

func (m *mockClient) Ping(_ context.Context) error {
	m.pingCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *mockClient) GetCaps(_ context.Context) (*entity.Caps, error) {
	m.capsCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capsErr != nil {
		return nil, m.capsErr
	}
	caps := m.caps
	return &caps, nil
}

func (m *mockClient) GetSyncStatus(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.syncErr != nil {
		return false, m.syncErr
	}
	return m.synced, nil
}

func (m *mockClient) GetConnections(_ context.Context) (entity.ActiveConnections, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connsErr != nil {
		return entity.ActiveConnections{}, m.connsErr
	}
	return m.conns, nil
}

func (m *mockClient) Control() <-chan rpc.Ctl {
	return m.ctl
}
