// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/gecostat/pkg/link"
	"github.com/Thermoquad/gecostat/pkg/session"
)

// PasswordEnv holds the WebSocket basic auth password
const PasswordEnv = "GECO_PASSWORD"

// ErrNoPassword is returned when a password is needed but stdin is not a
// terminal and the environment does not provide one
var ErrNoPassword = errors.New("password required: set " + PasswordEnv)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", ErrNoPassword
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// linkOptions resolves transport options, asking for a password only when a
// username is configured
func linkOptions(cfg *Config) (link.Options, error) {
	password := ""
	if cfg.Link.Username != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return link.Options{}, err
		}
	}
	return cfg.LinkOptions(password), nil
}

// describeLink renders the connection for banners
func describeLink(cfg *Config) string {
	scheme, _ := link.Scheme(cfg.Link.URL)
	switch scheme {
	case "serial":
		return fmt.Sprintf("Serial: %s @ %d baud", strings.TrimPrefix(cfg.Link.URL, "serial://"), cfg.Link.Baud)
	case "tcp":
		return fmt.Sprintf("TCP: %s", cfg.Link.URL)
	default:
		return fmt.Sprintf("WebSocket: %s", cfg.Link.URL)
	}
}

// OpenConnection opens the transport described by the loaded config
func OpenConnection(ctx context.Context) (link.Transport, string, error) {
	opts, err := linkOptions(appConfig)
	if err != nil {
		return nil, "", err
	}
	tr, err := link.Open(ctx, opts)
	if err != nil {
		return nil, "", err
	}
	return tr, describeLink(appConfig), nil
}

// newSession builds a session that reconnects with the loaded config
func newSession(log *zap.Logger) (*session.Session, error) {
	opts, err := linkOptions(appConfig)
	if err != nil {
		return nil, err
	}
	return session.New(link.NewOpener(opts), appConfig.SessionConfig(), session.WithLogger(log)), nil
}
