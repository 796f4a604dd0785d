package registry

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by Lookup when the user has no live connection.
var ErrNotConnected = errors.New("user has no live connection")

// Registry tracks which connection, if any, a user is currently reachable
// on. A user has at most one registered connection; registering a new one
// replaces the old.
type Registry interface {
	Register(ctx context.Context, userID, clientID string) error
	Deregister(ctx context.Context, userID, clientID string) error
	// Lookup resolves a user to their connection ID, or ErrNotConnected.
	Lookup(ctx context.Context, userID string) (string, error)
	StartHeartbeat(ctx context.Context)
	StopHeartbeat()
	Close() error
}
