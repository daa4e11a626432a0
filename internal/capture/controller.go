package capture

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ImageStore is where processed frames are encoded and written.
type ImageStore interface {
	ImageSaver
	Encoder
}

// Controller owns the capture device and hands out sessions. At most one
// session holds the device: opening a new session cancels the current one,
// and the new session does not bind until the old one has released the
// device.
type Controller struct {
	camera     Camera
	permission Permission
	store      ImageStore
	log        zerolog.Logger

	mu      sync.Mutex
	current *Session
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for session diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// NewController creates a controller over the given collaborators.
func NewController(camera Camera, permission Permission, store ImageStore, opts ...Option) *Controller {
	c := &Controller{
		camera:     camera,
		permission: permission,
		store:      store,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts a new session in the given mode. done receives the outcome
// once, when the session reaches a terminal state; it is never called for a
// cancelled session. Cancelling ctx cancels the session.
func (c *Controller) Open(ctx context.Context, mode Mode, done Completion) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	var prior <-chan struct{}
	if c.current != nil {
		c.current.Cancel()
		prior = c.current.Stopped()
	}
	s := newSession(ctx, mode, c, done)
	s.open(prior)
	c.current = s
	return s
}

// Current returns the most recently opened session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close cancels the current session and blocks until it has released the
// device or ctx is done.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	s.Cancel()
	select {
	case <-s.Stopped():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
