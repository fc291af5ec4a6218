package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nodemonitor/internal/pkg/apperrors"
)

// newTestNodeServer runs a minimal websocket JSON-RPC node. respond
// builds the result (or error) payload for each method.
func newTestNodeServer(t *testing.T, respond func(method string) (interface{}, *jsonRPCError)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req jsonRPCRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
			result, rpcErr := respond(req.Method)
			if rpcErr != nil {
				resp["error"] = rpcErr
			} else {
				resp["result"] = result
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func healthyNodeResponder(method string) (interface{}, *jsonRPCError) {
	switch method {
	case "ping":
		return true, nil
	case "getCapabilities":
		return map[string]interface{}{
			"systemId":     7,
			"version":      "1.2.3",
			"capacity":     1024,
			"clientsLimit": 512,
			"fdLimit":      4096,
		}, nil
	case "getSyncStatus":
		return map[string]bool{"synced": true}, nil
	case "getActiveConnections":
		return map[string]uint64{"clients": 3, "peers": 1}, nil
	default:
		return nil, &jsonRPCError{Code: -32601, Message: "method not found"}
	}
}

func connectedClient(t *testing.T, srv *httptest.Server) *WSClient {
	t.Helper()
	client := NewWSClient(wsURL(srv), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() { _ = client.TriggerAbort() })

	select {
	case ev := <-client.Control():
		require.Equal(t, CtlConnect, ev)
	case <-time.After(time.Second):
		t.Fatal("no connect event after dial")
	}
	return client
}

func TestWSClientQueriesHealthyNode(t *testing.T) {
	srv := newTestNodeServer(t, healthyNodeResponder)
	client := connectedClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	caps, err := client.GetCaps(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, caps.SystemID)
	assert.Equal(t, "1.2.3", caps.Version)
	assert.EqualValues(t, 1024, caps.Capacity)
	assert.EqualValues(t, 512, caps.ClientsLimit)
	assert.EqualValues(t, 4096, caps.FDLimit)

	synced, err := client.GetSyncStatus(ctx)
	require.NoError(t, err)
	assert.True(t, synced)

	conns, err := client.GetConnections(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, conns.Clients)
	assert.EqualValues(t, 1, conns.Peers)
}

func TestWSClientSurfacesJSONRPCErrors(t *testing.T) {
	srv := newTestNodeServer(t, func(string) (interface{}, *jsonRPCError) {
		return nil, &jsonRPCError{Code: -32000, Message: "node is on fire"}
	})
	client := connectedClient(t, srv)

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalServiceFailure)
	assert.Contains(t, err.Error(), "node is on fire")
}

func TestWSClientDialFailure(t *testing.T) {
	client := NewWSClient("ws://127.0.0.1:1", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := client.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransportConnect)
}

func TestWSClientCallWithoutSession(t *testing.T) {
	client := NewWSClient("ws://127.0.0.1:1", zap.NewNop())

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalServiceFailure)
}

func TestWSClientDisconnectEmitsCtl(t *testing.T) {
	srv := newTestNodeServer(t, healthyNodeResponder)
	client := connectedClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Disconnect(ctx))

	select {
	case ev := <-client.Control():
		assert.Equal(t, CtlDisconnect, ev)
	case <-time.After(time.Second):
		t.Fatal("no disconnect event after graceful close")
	}

	// Redial management is disarmed: the session stays down.
	err := client.Ping(context.Background())
	require.Error(t, err)
}

// newMuteNodeServer accepts the websocket session and discards every
// frame without ever answering.
func newMuteNodeServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWSClientCallTimeout(t *testing.T) {
	srv := newMuteNodeServer(t)

	client := NewWSClient(wsURL(srv), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() { _ = client.TriggerAbort() })

	callCtx, callCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer callCancel()
	err := client.Ping(callCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestWSClientBoundsCallsWithoutCallerDeadline(t *testing.T) {
	srv := newMuteNodeServer(t)

	client := NewWSClient(wsURL(srv), zap.NewNop())
	client.callTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() { _ = client.TriggerAbort() })

	// The actor's event loop calls with a deadline-free context; a
	// node that holds the session open but never replies must not
	// wedge it.
	start := time.Now()
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}
