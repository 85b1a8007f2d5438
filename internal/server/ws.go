package server

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/verte-zerg/dungeonlog/internal/event"
)

// HandleWebSocket upgrades the connection and feeds every text message to the
// tracker as one event.
func (s *Server) HandleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Printf("WARN: failed to upgrade websocket: %v", err)
		return err
	}
	conn.SetReadLimit(maxMessageSize)

	done := make(chan struct{})
	go s.pingLoop(conn, done)
	go s.readPump(conn, done)
	return nil
}

func (s *Server) readPump(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)
		if cerr := conn.Close(); cerr != nil {
			// Best-effort close.
			_ = cerr
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("WARN: websocket read: %v", err)
			}
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.ingest(data)
	}
}

// ingest decodes and applies one event. Bad events are logged and skipped.
func (s *Server) ingest(data []byte) {
	ev, err := event.Decode(data)
	if err != nil {
		if errors.Is(err, event.ErrUnknownType) {
			s.logger.Printf("WARN: skipping event: %v", err)
		} else {
			s.logger.Printf("WARN: malformed event: %v", err)
		}
		return
	}
	s.tracker.Apply(ev)
}

func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
