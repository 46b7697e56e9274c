package main

import "context"

type runner interface {
	Run(ctx context.Context)
}

// runDetached runs r on a context of its own, so it keeps draining after the signal
// context is done. The returned stop cancels r and waits for Run to return.
func runDetached(r runner) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
