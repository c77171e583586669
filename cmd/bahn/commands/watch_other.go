//go:build !unix

package commands

import "context"

// notifyFlush is a no-op where SIGUSR1 does not exist.
func notifyFlush(context.Context, func()) func() {
	return func() {}
}
