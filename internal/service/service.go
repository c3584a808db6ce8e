package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/eigenein/myiot/internal/event"
)

// Service is a long-running event producer.
type Service interface {
	fmt.Stringer
	// Events returns a fresh sequence on each call. The runner calls it again
	// after a failure or a normal return.
	Events(ctx context.Context) iter.Seq2[event.Event, error]
	// Close releases held resources. It is safe to call more than once.
	Close() error
}

type connectivityError struct{ err error }

func (e connectivityError) Error() string { return e.err.Error() }
func (e connectivityError) Unwrap() error { return e.err }

// Connectivity marks err as a connectivity failure for IsConnectivity.
func Connectivity(err error) error {
	if err == nil {
		return nil
	}
	return connectivityError{err: err}
}

// IsConnectivity reports whether err is a transient network failure: refused
// or reset connections, timeouts, truncated streams and marked errors.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	var marked connectivityError
	if errors.As(err, &marked) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
