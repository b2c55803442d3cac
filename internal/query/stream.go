package query

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coinharbor/walletcore/pkg/logging"
)

// StreamEvent is one push notification from the service. Type selects which
// of the remaining fields are meaningful.
type StreamEvent struct {
	Type         string   `json:"type"` // "transaction", "balance", "block"
	BlockchainID string   `json:"blockchain_id,omitempty"`
	CurrencyID   string   `json:"currency_id,omitempty"`
	Addresses    []string `json:"addresses,omitempty"`
	TxID         string   `json:"transaction_id,omitempty"`
	Height       uint64   `json:"height,omitempty"`
	Timestamp    int64    `json:"timestamp,omitempty"`
}

// Stream consumes the service's websocket push feed. Events arrive on the
// handler from the stream's read goroutine.
type Stream struct {
	url     string
	handler func(StreamEvent)
	log     *logging.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewStream creates a stream for the given ws:// or wss:// URL.
func NewStream(url string, handler func(StreamEvent)) *Stream {
	return &Stream{
		url:     url,
		handler: handler,
		log:     logging.GetDefault().Component("query-stream"),
	}
}

// Connect dials the feed and starts delivering events.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrService
	}
	s.conn = conn
	s.mu.Unlock()

	go s.readPump(conn)
	go s.pingPump(conn)
	return nil
}

// Close stops the stream. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Stream) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("stream read error", "err", err)
			}
			return
		}

		var ev StreamEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			s.log.Debug("dropping malformed stream message", "err", err)
			continue
		}
		s.handler(ev)
	}
}

func (s *Stream) pingPump(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}
