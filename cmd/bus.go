// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/gecostat/pkg/link"
)

const (
	readChunk   = 512
	readTimeout = 200 * time.Millisecond
)

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// readLoop passes every chunk read from tr to fn until ctx is done. A closed
// connection ends the loop without error.
func readLoop(ctx context.Context, tr link.Transport, fn func(chunk []byte)) error {
	buf := make([]byte, readChunk)
	for ctx.Err() == nil {
		n, err := tr.ReadTimeout(buf, readTimeout)
		if err != nil {
			if errors.Is(err, link.ErrClosed) || errors.Is(err, io.EOF) {
				logger.Info("connection closed")
				return nil
			}
			return err
		}
		if n > 0 {
			fn(buf[:n])
		}
	}
	return nil
}
