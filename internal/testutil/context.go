// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"
)

// WorkerTimeout bounds a test that spawns worker processes. It leaves room
// for a cold exec of the test binary on a loaded CI machine.
const WorkerTimeout = 20 * time.Second

// Context returns a context cancelled when the test ends or after
// WorkerTimeout, whichever comes first. A deadline passed with -timeout
// shortens it so a hung worker fails the test instead of the whole run.
func Context(t testing.TB) context.Context {
	t.Helper()

	deadline := time.Now().Add(WorkerTimeout)
	if d, ok := t.(interface{ Deadline() (time.Time, bool) }); ok {
		if td, set := d.Deadline(); set && td.Add(-time.Second).Before(deadline) {
			deadline = td.Add(-time.Second)
		}
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	t.Cleanup(cancel)
	return ctx
}
