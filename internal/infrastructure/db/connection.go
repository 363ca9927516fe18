package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
)

const defaultConnectTimeout = 10 * time.Second

// OpenFunc opens a new handle to a backing store
type OpenFunc[T any] func(ctx context.Context) (T, error)

// Connection owns a single store handle for the whole process. The handle is
// opened on first use; concurrent first callers share one in-flight attempt.
// A failed attempt is forgotten so the next call tries again.
type Connection[T any] struct {
	name    string
	open    OpenFunc[T]
	close   func(T) error
	timeout time.Duration
	logger  logger.Logger

	mu      sync.Mutex
	conn    T
	ready   bool
	pending *attempt[T]
	// gen is bumped by Close; an attempt started under an older gen is stale
	gen uint64
}

type attempt[T any] struct {
	done chan struct{}
	gen  uint64
	conn T
	err  error
}

var errClosedWhileOpening = errors.New("connection closed while opening")

// NewConnection creates a connection that is opened lazily by open
func NewConnection[T any](name string, timeout time.Duration, open OpenFunc[T], closeFn func(T) error, log logger.Logger) *Connection[T] {
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &Connection[T]{
		name:    name,
		open:    open,
		close:   closeFn,
		timeout: timeout,
		logger:  log,
	}
}

// Get returns the open handle, opening it if needed
func (c *Connection[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	if c.ready {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}

	a := c.pending
	if a == nil {
		a = &attempt[T]{done: make(chan struct{}), gen: c.gen}
		c.pending = a
		go c.connect(a)
	}
	c.mu.Unlock()

	var zero T
	select {
	case <-a.done:
		if a.err != nil {
			return zero, fmt.Errorf("%w: %s: %v", entity.ErrStorageUnavailable, c.name, a.err)
		}
		return a.conn, nil
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %s: %v", entity.ErrStorageUnavailable, c.name, ctx.Err())
	}
}

// connect runs one open attempt. It is detached from the caller's context so a
// cancelled request does not abort the attempt other callers are waiting on.
func (c *Connection[T]) connect(a *attempt[T]) {
	c.logger.Info("Connecting to storage", map[string]interface{}{
		"backend": c.name,
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.open(ctx)

	c.mu.Lock()
	stale := err == nil && a.gen != c.gen
	switch {
	case stale:
		err = errClosedWhileOpening
	case err == nil:
		c.conn = conn
		c.ready = true
	}
	if c.pending == a {
		c.pending = nil
	}
	a.conn, a.err = conn, err
	c.mu.Unlock()
	close(a.done)

	if stale {
		c.logger.Warn("Storage opened after close, releasing handle", map[string]interface{}{
			"backend": c.name,
		})
		if c.close != nil {
			if cerr := c.close(conn); cerr != nil {
				c.logger.Error("Failed to close stale storage handle", map[string]interface{}{
					"backend": c.name,
					"error":   cerr.Error(),
				})
			}
		}
		return
	}

	if err != nil {
		c.logger.Error("Storage connection failed", map[string]interface{}{
			"backend": c.name,
			"error":   err.Error(),
		})
		return
	}

	c.logger.Info("Storage connected", map[string]interface{}{
		"backend":     c.name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Ready reports whether a handle is open
func (c *Connection[T]) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Close closes the handle if one was opened. An open attempt still in flight
// is abandoned and its handle closed as soon as it arrives. A later Get opens
// a new one.
func (c *Connection[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.pending = nil

	if !c.ready {
		return nil
	}

	conn := c.conn
	var zero T
	c.conn = zero
	c.ready = false

	if c.close == nil {
		return nil
	}
	return c.close(conn)
}
