package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const streamWriteWait = 1 * time.Second

// StreamSink broadcasts each record to every connected websocket client.
// It is transport only: rendering of the stream is someone else's job.
// A slow or dead client is dropped rather than allowed to stall the tick
// loop.
type StreamSink struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
}

// NewStreamSink creates a broadcast sink. Register its ServeHTTP on the
// endpoint clients should dial.
func NewStreamSink(log *zap.Logger) *StreamSink {
	return &StreamSink{
		log:     log,
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (s *StreamSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[conn] = true
	s.mu.Unlock()
	s.log.Info("telemetry client connected", zap.String("remote", conn.RemoteAddr().String()))
}

func (s *StreamSink) Write(rec *Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("telemetry record rejected: %w", err)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			s.log.Warn("dropping telemetry client", zap.Error(err))
			delete(s.clients, conn)
			_ = conn.Close()
		}
	}
	return nil
}

func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var err error
	for conn := range s.clients {
		err = multierr.Append(err, conn.Close())
		delete(s.clients, conn)
	}
	return err
}
