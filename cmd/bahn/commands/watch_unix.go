//go:build unix

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// notifyFlush calls trigger on every SIGUSR1 until the returned stop
// function runs or ctx is done.
func notifyFlush(ctx context.Context, trigger func()) func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sig:
				trigger()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sig)
		close(done)
	}
}
