// Package gateway defines how users reach the chatbot. Each transport
// (terminal, HTTP, WebSocket, Telegram, MCP) implements Gateway and is run
// side by side by the serve command.
package gateway

import (
	"context"
	"fmt"
)

// Gateway is one user-facing transport feeding turns into the shared bot.
type Gateway interface {
	// Start runs the gateway and blocks until it exits or ctx is canceled.
	// Returns an error only on failure.
	Start(ctx context.Context) error

	// Stop shuts the gateway down gracefully. ctx carries the grace period;
	// in-flight turns should finish before Stop returns.
	Stop(ctx context.Context) error
}

// Named is implemented by gateways that report a short name for logs.
type Named interface {
	Name() string
}

// NameOf returns the gateway's name, falling back to its Go type.
func NameOf(g Gateway) string {
	if n, ok := g.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", g)
}
