package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitInterrupted is the status used when a second interrupt forces an exit.
const ExitInterrupted = 130

// InterruptHandler turns SIGINT/SIGTERM into context cancellation. The first
// signal lets in-flight files finish their transaction; a second one exits
// immediately.
type InterruptHandler struct {
	out         io.Writer
	subscribe   func() (<-chan os.Signal, func())
	exit        func(int)
	resumeHint  string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler reports interrupts to out (stderr when nil).
func NewInterruptHandler(out io.Writer) *InterruptHandler {
	if out == nil {
		out = os.Stderr
	}
	return &InterruptHandler{
		out: out,
		subscribe: func() (<-chan os.Signal, func()) {
			c := make(chan os.Signal, 2)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			return c, func() { signal.Stop(c) }
		},
		exit: os.Exit,
	}
}

// HandleInterrupts returns a child of ctx that is canceled by the first
// interrupt. resumeHint, when set, names the command that continues the work.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, resumeHint string) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	h.resumeHint = resumeHint
	sigs, unsubscribe := h.subscribe()

	go func() {
		select {
		case <-sigs:
		case <-ctx.Done():
			unsubscribe()
			return
		}

		h.mu.Lock()
		h.interrupted = true
		h.mu.Unlock()
		h.notice()
		cancel()

		<-sigs
		h.write("\n" + FormatError("Second interrupt, exiting now.") + "\n")
		h.exit(ExitInterrupted)
	}()

	return ctx
}

func (h *InterruptHandler) notice() {
	msg := "\n" + FormatWarning("Run interrupted, finishing the current files.")
	if h.resumeHint != "" {
		msg += "\n" + FormatInfo("Files already processed are committed. Resume with: "+h.resumeHint)
	}
	h.write(msg + "\n")
}

func (h *InterruptHandler) write(msg string) {
	if _, err := io.WriteString(h.out, msg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write interrupt notice: %v\n", err)
	}
}

// WasInterrupted reports whether a signal arrived.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
