// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialTransport wraps a local RS485 adapter
type SerialTransport struct {
	mu      sync.Mutex
	port    serial.Port
	name    string
	baud    int
	timeout time.Duration
}

// OpenSerial opens a serial port at 8N1
func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialTransport{port: port, name: portName, baud: baudRate}, nil
}

func (s *SerialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// ReadTimeout reads with the port's read timeout. go.bug.st/serial already
// reports an expired timeout as 0, nil.
func (s *SerialTransport) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	s.mu.Lock()
	if timeout != s.timeout {
		if err := s.port.SetReadTimeout(timeout); err != nil {
			s.mu.Unlock()
			return 0, err
		}
		s.timeout = timeout
	}
	s.mu.Unlock()
	return s.port.Read(p)
}

// Flush discards the driver's input buffer
func (s *SerialTransport) Flush() error {
	return s.port.ResetInputBuffer()
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}

func (s *SerialTransport) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", s.name, s.baud)
}

// ListPorts returns the serial ports present on this machine
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
