package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// MockServer is an in-process market data feed used by the client tests.
// It records every control frame it receives and can broadcast frames to
// connected clients or drop them to simulate failures.
type MockServer struct {
	server *httptest.Server
	url    string

	mu          sync.Mutex
	connections map[*websocket.Conn]bool
	frames      []subscribeFrame
	onFrame     func(*websocket.Conn, subscribeFrame)

	rejectConnections bool
}

// NewMockServer starts a mock feed on a random local port.
func NewMockServer() *MockServer {
	mock := &MockServer{
		connections: make(map[*websocket.Conn]bool),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleConnection))
	mock.url = "ws" + strings.TrimPrefix(mock.server.URL, "http")
	return mock
}

// URL returns the feed's ws:// address.
func (m *MockServer) URL() string {
	return m.url
}

// Close shuts the feed down, dropping every client.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetRejectConnections makes the feed refuse new connections.
func (m *MockServer) SetRejectConnections(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectConnections = reject
}

// OnFrame registers a callback invoked for every control frame received.
func (m *MockServer) OnFrame(callback func(*websocket.Conn, subscribeFrame)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFrame = callback
}

// Frames returns a copy of every control frame received so far.
func (m *MockServer) Frames() []subscribeFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames := make([]subscribeFrame, len(m.frames))
	copy(frames, m.frames)
	return frames
}

// Broadcast sends a raw frame to every connected client.
func (m *MockServer) Broadcast(message []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.connections {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			delete(m.connections, conn)
		}
	}
}

// BroadcastJSON marshals v and sends it to every connected client.
func (m *MockServer) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.Broadcast(data)
	return nil
}

// DropClients closes every active connection without a close handshake.
func (m *MockServer) DropClients() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.connections {
		_ = conn.Close()
		delete(m.connections, conn)
	}
}

// ConnectionCount returns the number of active connections.
func (m *MockServer) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

func (m *MockServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	reject := m.rejectConnections
	m.mu.Unlock()
	if reject {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.connections[conn] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.connections, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame subscribeFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}

		m.mu.Lock()
		m.frames = append(m.frames, frame)
		callback := m.onFrame
		m.mu.Unlock()

		if callback != nil {
			callback(conn, frame)
		}
	}
}

func setupMockServer(t *testing.T) *MockServer {
	t.Helper()
	mock := NewMockServer()
	t.Cleanup(mock.Close)
	return mock
}
