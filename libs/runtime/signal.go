package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext derives a context cancelled on interrupt or SIGTERM. Calling the
// returned func restores default signal handling.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
