// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport carries bus bytes in binary WebSocket messages
type WebSocketTransport struct {
	conn *websocket.Conn
	url  string

	msgs chan []byte
	errc chan error
	done chan struct{}

	buf       []byte
	bufOffset int

	writeMu   sync.Mutex
	closeOnce sync.Once
	err       error
}

// DialWebSocket opens a WebSocket bridge connection with optional HTTP Basic auth
func DialWebSocket(ctx context.Context, wsURL, username, password string, skipSSLVerify bool, timeout time.Duration) (*WebSocketTransport, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocketTransport(conn, wsURL), nil
}

// NewWebSocketTransport wraps an established connection and starts its reader
func NewWebSocketTransport(conn *websocket.Conn, name string) *WebSocketTransport {
	w := &WebSocketTransport{
		conn: conn,
		url:  name,
		msgs: make(chan []byte, 64),
		errc: make(chan error, 1),
		done: make(chan struct{}),
	}
	go w.readLoop()
	return w
}

func (w *WebSocketTransport) readLoop() {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.errc <- err
			return
		}
		// Only binary messages carry bus bytes
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.msgs <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketTransport) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ReadTimeout returns buffered bytes first, then waits for the next message
func (w *WebSocketTransport) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if w.bufOffset < len(w.buf) {
		return w.fromBuffer(p), nil
	}
	if w.err != nil {
		return 0, w.err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-w.msgs:
		w.buf = data
		w.bufOffset = 0
		return w.fromBuffer(p), nil
	case err := <-w.errc:
		w.err = err
		return 0, err
	case <-w.done:
		return 0, ErrClosed
	case <-timer.C:
		return 0, nil
	}
}

func (w *WebSocketTransport) fromBuffer(p []byte) int {
	n := copy(p, w.buf[w.bufOffset:])
	w.bufOffset += n
	return n
}

// Flush drops the partial message and every queued one
func (w *WebSocketTransport) Flush() error {
	w.buf = nil
	w.bufOffset = 0
	for {
		select {
		case <-w.msgs:
		case err := <-w.errc:
			w.err = err
			return err
		default:
			return w.err
		}
	}
}

func (w *WebSocketTransport) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

func (w *WebSocketTransport) String() string {
	return "WebSocket: " + w.url
}
