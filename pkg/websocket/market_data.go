// Package websocket implements the streaming side of the Coinbase
// Advanced Trade client: a market data connection that signs its
// subscribe frames, reads inbound frames on a dedicated goroutine and
// hands decoded messages to the consumer through an ordered Queue.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veiloq/coinbase-advanced/pkg/auth"
	"github.com/veiloq/coinbase-advanced/pkg/logging"
)

// DefaultURL is the production market data endpoint.
const DefaultURL = "wss://advanced-trade-ws.coinbase.com"

// State reflects where the client is in its connection lifecycle.
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateSubscribed
	StateClosing
	StateClosed
)

// String returns the string representation of a state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned when a control frame is requested
	// before Listen has established the connection.
	ErrNotConnected = errors.New("websocket not connected")

	// ErrAlreadyListening is returned when Listen is called more than
	// once; a client instance owns exactly one connection.
	ErrAlreadyListening = errors.New("websocket client already listening")
)

// Options holds market data client configuration.
type Options struct {
	// Channel is the stream to subscribe to (e.g. "ticker", "level2").
	Channel string

	// ProductIDs lists the products to subscribe for. Order is
	// preserved in the subscription signature.
	ProductIDs []string

	// URL overrides the production endpoint, mainly for tests.
	URL string

	// HandshakeTimeout bounds the opening handshake (defaults to 10s).
	HandshakeTimeout time.Duration

	// Debug enables frame-level logging.
	Debug bool

	// Logger receives client diagnostics (defaults to a no-op logger).
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}

// subscribeFrame is the wire form of subscribe/unsubscribe control
// messages. The auth fields are present only on subscribe.
type subscribeFrame struct {
	Type       string   `json:"type"`
	Channel    string   `json:"channel"`
	ProductIDs []string `json:"product_ids"`
	APIKey     string   `json:"api_key,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Signature  string   `json:"signature,omitempty"`
}

// MarketData owns one WebSocket connection to the market data feed. The
// read loop runs on its own goroutine; the caller interacts with the
// connection only through Subscribe/Unsubscribe/Close and the Queue.
// A client is single-use: after Close, create a new instance to
// reconnect. The client does not reconnect on its own; a closed queue
// is the signal to the caller that the connection is gone.
type MarketData struct {
	opts   Options
	signer *auth.Signer
	logger logging.Logger

	queue *Queue
	state atomic.Int32

	conn     *websocket.Conn
	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

// NewMarketData creates a market data client for one channel and product
// set.
//
// Example:
//
//	client, err := websocket.NewMarketData(creds, websocket.Options{
//		Channel:    "ticker",
//		ProductIDs: []string{"BTC-USD", "ETH-USD"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Listen(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	for msg := range client.Queue().Drain() {
//		fmt.Println(msg["channel"], msg["events"])
//	}
func NewMarketData(creds auth.Credentials, opts Options) (*MarketData, error) {
	opts = opts.withDefaults()

	if opts.Channel == "" {
		return nil, errors.New("websocket: channel is required")
	}
	if len(opts.ProductIDs) == 0 {
		return nil, errors.New("websocket: at least one product id is required")
	}

	signer, err := auth.NewSigner(creds)
	if err != nil {
		return nil, err
	}

	return &MarketData{
		opts:   opts,
		signer: signer,
		logger: opts.Logger,
		queue:  NewQueue(),
		done:   make(chan struct{}),
	}, nil
}

// Queue returns the delivery queue carrying decoded inbound messages.
func (m *MarketData) Queue() *Queue {
	return m.queue
}

// State returns the client's current lifecycle state.
func (m *MarketData) State() State {
	return State(m.state.Load())
}

// Listen dials the feed, sends the signed subscribe frame and starts the
// read loop on a background goroutine. The calling goroutine is not
// blocked; cancelling ctx closes the connection.
func (m *MarketData) Listen(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateCreated), int32(StateConnecting)) {
		return ErrAlreadyListening
	}

	m.debug("dialing market data feed",
		logging.String("url", m.opts.URL),
		logging.String("channel", m.opts.Channel),
	)

	dialer := websocket.Dialer{
		HandshakeTimeout: m.opts.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, m.opts.URL, nil)
	if err != nil {
		m.state.Store(int32(StateClosed))
		m.queue.Close()
		m.closeDone()
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	m.conn = conn

	if err := m.Subscribe(); err != nil {
		m.state.Store(int32(StateClosing))
		_ = conn.Close()
		m.state.Store(int32(StateClosed))
		m.queue.Close()
		m.closeDone()
		return fmt.Errorf("subscribe failed: %w", err)
	}
	m.state.Store(int32(StateSubscribed))

	go m.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			m.logger.Info("context cancelled, closing market data client")
			_ = m.Close()
		case <-m.done:
		}
	}()

	m.debug("listening for market data messages")
	return nil
}

// Subscribe sends a signed subscribe control frame for the configured
// channel and product IDs. The signature carries a fresh timestamp on
// every call. Listen invokes it automatically once the connection opens.
func (m *MarketData) Subscribe() error {
	if m.conn == nil {
		return ErrNotConnected
	}

	m.debug("subscribing",
		logging.String("channel", m.opts.Channel),
		logging.Int("products", len(m.opts.ProductIDs)),
	)

	signed := m.signer.SignSubscription(m.opts.Channel, m.opts.ProductIDs)
	return m.send(subscribeFrame{
		Type:       "subscribe",
		Channel:    m.opts.Channel,
		ProductIDs: m.opts.ProductIDs,
		APIKey:     signed.APIKey,
		Timestamp:  signed.Timestamp,
		Signature:  signed.Signature,
	})
}

// Unsubscribe sends an unsubscribe control frame for the configured
// channel. Unsubscribe frames are not signed.
func (m *MarketData) Unsubscribe() error {
	if m.conn == nil {
		return ErrNotConnected
	}

	m.debug("unsubscribing", logging.String("channel", m.opts.Channel))

	return m.send(subscribeFrame{
		Type:       "unsubscribe",
		Channel:    m.opts.Channel,
		ProductIDs: m.opts.ProductIDs,
	})
}

// Close unsubscribes, closes the socket and closes the delivery queue.
// It is safe to call from any goroutine, including the read loop; calls
// after the first are no-ops. Close does not wait for the read loop to
// finish; consumers observe termination through the queue.
func (m *MarketData) Close() error {
	if !m.state.CompareAndSwap(int32(StateSubscribed), int32(StateClosing)) &&
		!m.state.CompareAndSwap(int32(StateConnecting), int32(StateClosing)) {
		return nil
	}

	var err error
	if m.conn != nil {
		if uerr := m.Unsubscribe(); uerr != nil {
			m.logger.Warn("unsubscribe on close failed", logging.Error(uerr))
		}

		m.writeMu.Lock()
		_ = m.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed connection"))
		m.writeMu.Unlock()

		err = m.conn.Close()
	}
	m.state.Store(int32(StateClosed))
	m.queue.Close()
	m.closeDone()

	m.debug("market data client closed")
	return err
}

// readLoop reads frames until the connection fails or is closed, keeping
// delivery order identical to arrival order. It is the only goroutine
// touching the read side of the connection.
func (m *MarketData) readLoop() {
	defer func() {
		m.state.Store(int32(StateClosed))
		m.queue.Close()
		m.closeDone()
	}()

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if m.State() == StateClosing || m.State() == StateClosed {
				m.debug("read loop stopped")
				return
			}
			m.logger.Error("websocket read failed", logging.Error(err))
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed frame: report and drop, the stream stays up.
			m.logger.Warn("dropping malformed frame",
				logging.Error(err),
				logging.Int("size", len(data)),
			)
			continue
		}

		if msgType, _ := msg["type"].(string); msgType == "error" {
			// Exchange-reported protocol error: the frame is not
			// enqueued, the connection is torn down.
			m.logger.Error("exchange reported stream error",
				logging.String("message", str(msg["message"])),
				logging.String("reason", str(msg["reason"])),
			)
			_ = m.Close()
			return
		}

		m.queue.Push(msg)
	}
}

func (m *MarketData) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.conn.WriteMessage(websocket.TextMessage, data)
}

func (m *MarketData) closeDone() {
	m.doneOnce.Do(func() {
		close(m.done)
	})
}

func (m *MarketData) debug(msg string, fields ...logging.Field) {
	if m.opts.Debug {
		m.logger.Debug(msg, fields...)
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
