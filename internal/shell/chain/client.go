// Package chain provides the chain client used to deploy and configure units.
package chain

import (
	"context"

	"github.com/artpar/chaindeploy/internal/shell/artifact"
)

// =============================================================================
// Client Interface
// =============================================================================

// Client is the chain capability the orchestrator depends on.
//
// Deploy and Invoke block until the transaction is confirmed or fails.
type Client interface {
	// CodePresentAt reports whether a live instance with non-empty code
	// exists at address.
	CodePresentAt(ctx context.Context, address string) (bool, error)

	// Deploy submits a construction transaction and returns the confirmed
	// instance address.
	Deploy(ctx context.Context, a *artifact.Artifact, args []string) (string, error)

	// Invoke submits a method call on a deployed instance and waits for it.
	Invoke(ctx context.Context, call Call) error

	// CurrentIdentity returns the signing identity (account address).
	CurrentIdentity(ctx context.Context) (string, error)
}

// Call describes a configuration action.
type Call struct {
	Target   string             // Instance address
	Artifact *artifact.Artifact // Interface of the target
	Method   string
	Args     []string
}
