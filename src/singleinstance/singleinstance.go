package singleinstance

// This file defines the API for single-instance ownership and one-shot
// solve delegation.

import (
	"context"
)

// Server owns the TCP endpoint and answers delegated solve requests.
type Server interface {
	// Start begins listening on the first port of the configured range and
	// accepting client requests.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess sends success. For stdout mode, send text; for clipboard
	// mode, send empty text.
	RespondSuccess(text string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Request is a single delegated solve request. Mode is the lowercase capture
// mode name (area, window, clipboard).
type Request struct {
	Mode           string
	OutputToStdout bool
}

// Client attempts to delegate a one-shot solve to a resident server.
type Client interface {
	// TrySolve scans the configured TCP range, performs the handshake, and
	// delegates to a resident. If no resident is found, returns
	// delegated=false, err=nil.
	TrySolve(ctx context.Context, mode string, outputToStdout bool) (delegated bool, text string, err error)
}

// NewServer returns the TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns the TCP implementation.
func NewClient() Client { return newTcpClient() }
