// Package signal provides two-stage interrupt handling for cadence commands.
//
// The first SIGINT or SIGTERM asks the running execution to stop gracefully
// so tear-down steps and history writes still happen. A second signal cancels
// the command context outright.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler listens for interrupt signals on behalf of one command.
type Handler struct {
	ctx         context.Context //nolint:containedctx // intentional: handler manages context lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	done        chan struct{}
	sigChan     chan os.Signal

	mu       sync.Mutex
	received int
	stopOnce sync.Once
}

// NewHandler creates a signal handler that listens for SIGINT and SIGTERM.
//
// Usage:
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//	go func() {
//	    <-h.Interrupted()
//	    _ = engine.Stop(ctx, executionID)
//	}()
//	report, err := engine.ExecuteByID(h.Context(), id, req)
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		// signal.Notify does not block; a full channel drops the signal.
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context returns the command context. It is canceled by the second signal,
// by Stop, or by the parent.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel closed on the first signal.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// Signals returns how many interrupt signals have been received.
func (h *Handler) Signals() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.received
}

// Stop stops listening for signals and cancels the context.
// Safe to call more than once.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}

func (h *Handler) handleSignal() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.received++
	switch h.received {
	case 1:
		close(h.interrupted)
	case 2:
		h.cancel()
	}
}

// listen keeps draining the channel after the second signal so repeated
// Ctrl+C never blocks signal delivery.
func (h *Handler) listen() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.done:
			return
		case <-h.sigChan:
			h.handleSignal()
		}
	}
}
