// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// TCPTransport talks to an RS485-to-TCP bridge in raw socket mode
type TCPTransport struct {
	conn net.Conn
	addr string
}

// DialTCP connects to a serial bridge at host:port
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (*TCPTransport, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &TCPTransport{conn: conn, addr: addr}, nil
}

// NewTCPTransport wraps an established connection
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn, addr: conn.RemoteAddr().String()}
}

func (t *TCPTransport) Write(p []byte) (int, error) {
	if err := t.conn.SetWriteDeadline(time.Now().Add(DefaultDialTimeout)); err != nil {
		return 0, err
	}
	return t.conn.Write(p)
}

// ReadTimeout reads with a deadline, reporting an expired deadline as 0, nil
func (t *TCPTransport) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(p)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

// Flush drains whatever the bridge already delivered
func (t *TCPTransport) Flush() error {
	buf := make([]byte, 256)
	for i := 0; i < maxFlushReads; i++ {
		n, err := t.ReadTimeout(buf, flushWindow)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func (t *TCPTransport) String() string {
	return "TCP: " + t.addr
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
