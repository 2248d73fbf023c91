// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/lobby-relay/internal/lobby"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// wsClient carries one lobby session over a WebSocket connection. Each text
// frame holds one or more newline separated protocol lines in either
// direction.
type wsClient struct {
	conn        *websocket.Conn
	session     *lobby.Session
	server      *Server
	rateLimiter *rateLimiter
}

func newWSClient(conn *websocket.Conn, sess *lobby.Session, srv *Server) *wsClient {
	conn.SetReadLimit(srv.cfg.MaxLineSize)
	return &wsClient{
		conn:        conn,
		session:     sess,
		server:      srv,
		rateLimiter: newRateLimiter(srv.cfg.RateLimit),
	}
}

// run starts the write pump and blocks in the read pump until the client
// goes away.
func (c *wsClient) run() {
	defer c.server.hub.unregister(c.session)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump()

	c.server.dispatcher.Disconnect(c.session)
	<-writerDone
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *wsClient) setupReadConnection() {
	log := c.server.log
	if err := c.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Warn("error setting initial read deadline", "addr", c.session.Addr(), "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
			log.Warn("error setting read deadline in pong handler", "addr", c.session.Addr(), "err", err)
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type.
func (c *wsClient) handleReadError(err error) {
	log := c.server.log
	addr := c.session.Addr()

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn("message exceeded maximum size", "addr", addr, "max", c.server.cfg.MaxLineSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Info("client disconnected", "addr", addr, "err", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Info("client connection closed", "addr", addr, "err", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		log.Warn("unexpected websocket error", "addr", addr, "err", err)
	default:
		log.Warn("websocket read error", "addr", addr, "err", err)
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the line should be processed
func (c *wsClient) checkRateLimit() bool {
	if c.rateLimiter.allow() {
		return true
	}
	rl := c.server.cfg.RateLimit
	c.server.log.Warn("rate limit exceeded, discarding line", "addr", c.session.Addr(),
		"burst", rl.Burst, "interval", rl.RefillInterval)
	return false
}

// processMessage hands every line of a frame to the dispatcher. Each line
// takes its own rate limit token.
func (c *wsClient) processMessage(frame []byte) {
	for _, line := range strings.Split(string(frame), "\n") {
		if !c.checkRateLimit() {
			continue
		}
		if err := c.server.dispatcher.Handle(c.session, line); err != nil {
			c.server.log.Debug("command error", "addr", c.session.Addr(), "err", err)
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.server.log.Warn("error closing connection in readPump", "addr", c.session.Addr(), "err", err)
		}
	}()

	c.setupReadConnection()

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.processMessage(frame)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *wsClient) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.session.Outbound():
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *wsClient) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.server.log.Warn("error closing connection in writePump", "addr", c.session.Addr(), "err", err)
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *wsClient) handleMessage(message string, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		c.server.log.Warn("error setting write deadline", "addr", c.session.Addr(), "err", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *wsClient) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.server.log.Warn("error writing close message", "addr", c.session.Addr(), "err", err)
	}
	return false
}

// writeTextMessage writes a text frame holding message and any lines queued
// behind it.
func (c *wsClient) writeTextMessage(message string) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.server.log.Warn("error creating writer", "addr", c.session.Addr(), "err", err)
		return false
	}

	if _, err := io.WriteString(w, message); err != nil {
		c.server.log.Warn("error writing message", "addr", c.session.Addr(), "err", err)
		return false
	}

	if !c.writeQueuedMessages(w) {
		return false
	}

	if err := w.Close(); err != nil {
		c.server.log.Warn("error closing writer", "addr", c.session.Addr(), "err", err)
		return false
	}
	return true
}

// writeQueuedMessages appends the lines already waiting in the queue. A
// closed queue ends the batch; the next read of it stops the pump.
func (c *wsClient) writeQueuedMessages(w io.Writer) bool {
	out := c.session.Outbound()
	n := len(out)
	for i := 0; i < n; i++ {
		msg, ok := <-out
		if !ok {
			return true
		}
		if _, err := io.WriteString(w, "\n"+msg); err != nil {
			c.server.log.Warn("error writing queued message", "addr", c.session.Addr(), "err", err)
			return false
		}
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *wsClient) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		c.server.log.Warn("error setting write deadline for ping", "addr", c.session.Addr(), "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.server.log.Warn("error writing ping message", "addr", c.session.Addr(), "err", err)
		return false
	}
	return true
}
