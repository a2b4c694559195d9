// pkg/execute/runner.go

package execute

import "context"

// RunFunc is the signature of Run. Packages that shell out hold one of these
// so tests can substitute a fake without spawning processes.
type RunFunc func(ctx context.Context, opts Options) (string, error)
