// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link provides the byte transports used to reach a GECO bus: a
// TCP serial bridge, a local serial adapter, or a WebSocket bridge.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// Transport is a bidirectional byte stream to the RS485 bus
type Transport interface {
	io.Writer
	io.Closer

	// ReadTimeout waits up to timeout for bytes. A timeout is not an error:
	// it returns 0, nil.
	ReadTimeout(p []byte, timeout time.Duration) (int, error)

	// Flush discards any bytes already received but not yet read
	Flush() error

	// String describes the endpoint for logs
	String() string
}

// Opener opens a fresh transport. Sessions call it again after a failure.
type Opener func(ctx context.Context) (Transport, error)

// ErrClosed is returned when using a transport after Close
var ErrClosed = errors.New("transport closed")

// Options describe how to reach the bus
type Options struct {
	// URL selects the transport: tcp://host:port or socket://host:port for a
	// serial bridge, serial:///dev/ttyUSB0 or a bare device path for a local
	// adapter, ws:// or wss:// for a WebSocket bridge.
	URL string

	// Baud applies to local serial adapters
	Baud int

	// Username and Password enable HTTP Basic auth on WebSocket bridges
	Username    string
	Password    string
	NoSSLVerify bool

	DialTimeout time.Duration
}

// Default transport settings
const (
	DefaultBaud        = 38400
	DefaultDialTimeout = 10 * time.Second
	flushWindow        = 10 * time.Millisecond
	maxFlushReads      = 64
)

// Scheme returns the transport kind selected by a URL
func Scheme(rawURL string) (string, error) {
	if strings.HasPrefix(rawURL, "/") {
		return "serial", nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "tcp", "socket":
		return "tcp", nil
	case "serial":
		return "serial", nil
	case "ws", "wss":
		return "ws", nil
	case "":
		return "", fmt.Errorf("missing scheme in %q", rawURL)
	default:
		return "", fmt.Errorf("unsupported URL scheme: %s (use tcp://, socket://, serial://, ws:// or wss://)", u.Scheme)
	}
}

// Open connects to the bus described by opts
func Open(ctx context.Context, opts Options) (Transport, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}

	scheme, err := Scheme(opts.URL)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case "tcp":
		u, _ := url.Parse(opts.URL)
		return DialTCP(ctx, u.Host, opts.DialTimeout)
	case "serial":
		device := opts.URL
		if strings.HasPrefix(device, "serial://") {
			device = strings.TrimPrefix(device, "serial://")
		}
		baud := opts.Baud
		if baud <= 0 {
			baud = DefaultBaud
		}
		return OpenSerial(device, baud)
	default:
		return DialWebSocket(ctx, opts.URL, opts.Username, opts.Password, opts.NoSSLVerify, opts.DialTimeout)
	}
}

// NewOpener returns an Opener that connects with opts every time it is called
func NewOpener(opts Options) Opener {
	return func(ctx context.Context) (Transport, error) {
		return Open(ctx, opts)
	}
}
