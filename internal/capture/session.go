package capture

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// ErrCaptureFailed marks a device fault while taking the picture.
var ErrCaptureFailed = errors.New("capture failed")

// Session is one user-initiated photograph. Sessions are created by
// Controller.Open and are never reused: after a terminal state or Cancel a
// new session must be opened.
//
// Caller methods (Capture, Cancel, State) and device results delivered by
// the session's worker goroutine are serialised by mu. Every device result
// is applied only if the session is still in the state that requested it,
// so results arriving after Cancel are dropped.
type Session struct {
	id         string
	mode       Mode
	camera     Camera
	permission Permission
	store      ImageStore
	onComplete Completion
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	history  []State
	preview  Preview
	trigger  chan struct{} // closed by Capture
	ready    chan struct{} // closed on entering PreviewActive
	finished chan struct{} // closed on a terminal state or Cancel
	stopped  chan struct{} // closed when the worker exits
}

func newSession(parent context.Context, mode Mode, c *Controller, done Completion) *Session {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:         id.String(),
		mode:       mode,
		camera:     c.camera,
		permission: c.permission,
		store:      c.store,
		onComplete: done,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		history:    []State{StateIdle},
		trigger:    make(chan struct{}),
		ready:      make(chan struct{}),
		finished:   make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	s.log = c.log.With().Str("session", s.id).Stringer("mode", mode).Logger()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the tag the session was opened with.
func (s *Session) Mode() Mode { return s.mode }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns every state the session has entered, in order.
func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Ready is closed once the preview is live and Capture may be called. It
// stays open if the session fails or is cancelled first.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Done is closed when the session reaches a terminal state or is cancelled.
func (s *Session) Done() <-chan struct{} { return s.finished }

// Stopped is closed once the session's worker has exited and released the
// device.
func (s *Session) Stopped() <-chan struct{} { return s.stopped }

// Capture triggers the shutter. It is only legal in PreviewActive; in any
// other state it does nothing and returns an error wrapping ErrInvalidState.
func (s *Session) Capture() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreviewActive {
		return fmt.Errorf("%w: capture requested in state %s", types.ErrInvalidState, s.state)
	}
	s.setState(StateCapturing)
	close(s.trigger)
	return nil
}

// Cancel abandons the session: the device is unbound, in-flight work is
// discarded, and the completion callback never fires. Cancel on a terminal
// or already cancelled session does nothing.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		return
	}
	s.setState(StateIdle)
	s.cancel()
	s.releasePreviewLocked()
	close(s.finished)
	s.log.Debug().Msg("capture cancelled")
}

// open moves the session out of Idle and starts the worker. The worker waits
// for prior (the previous session's Stopped channel) before touching the
// device.
func (s *Session) open(prior <-chan struct{}) {
	s.mu.Lock()
	s.setState(StatePermissionPending)
	s.mu.Unlock()

	stop := context.AfterFunc(s.ctx, s.Cancel)
	go func() {
		defer s.cancel()
		defer stop()
		s.run(prior)
	}()
}

// run is the session's executor. Each blocking step runs here, never on the
// caller's goroutine.
func (s *Session) run(prior <-chan struct{}) {
	defer close(s.stopped)
	defer s.releasePreview()

	if prior != nil {
		select {
		case <-prior:
		case <-s.ctx.Done():
			return
		}
	}

	if !s.awaitPermission() {
		return
	}

	preview, ok := s.bindPreview()
	if !ok {
		return
	}

	select {
	case <-s.trigger:
	case <-s.ctx.Done():
		return
	}

	raw, err := preview.Capture(s.ctx)
	s.releasePreview()
	if err != nil {
		s.finish(StateCapturing, StateCaptureError, Result{
			Err: fmt.Errorf("%w: %w: %w", types.ErrDeviceUnavailable, ErrCaptureFailed, err),
		})
		return
	}
	if !s.transition(StateCapturing, StateCaptured) {
		return
	}

	data, err := processFrame(raw, s.store)
	if err != nil {
		s.finish(StateCaptured, StateCaptureError, Result{Err: err})
		return
	}
	path, err := s.store.Save(data)
	if err != nil {
		s.finish(StateCaptured, StateCaptureError, Result{Err: err})
		return
	}

	if !s.finish(StateCaptured, StateSaved, Result{Image: data, ImagePath: path}) {
		// Cancelled while saving; nobody owns the file.
		if _, err := s.store.Delete(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("removing image of cancelled capture")
		}
	}
}

// awaitPermission resolves the permission step. It returns true once the
// session has moved on to PreviewBinding.
func (s *Session) awaitPermission() bool {
	granted := s.permission.Granted()
	var err error
	if !granted {
		granted, err = s.permission.Request(s.ctx)
	}
	if err != nil || !granted {
		cause := types.ErrPermissionDenied
		if err != nil {
			cause = fmt.Errorf("%w: %w", types.ErrPermissionDenied, err)
		}
		s.finish(StatePermissionPending, StatePermissionDenied, Result{Err: cause})
		return false
	}
	return s.transition(StatePermissionPending, StatePreviewBinding)
}

// bindPreview binds the camera. A preview that arrives after Cancel is
// closed immediately.
func (s *Session) bindPreview() (Preview, bool) {
	preview, err := s.camera.Bind(s.ctx)
	if err != nil {
		s.finish(StatePreviewBinding, StateCaptureError, Result{
			Err: fmt.Errorf("%w: %w", types.ErrDeviceUnavailable, err),
		})
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePreviewBinding {
		if err := preview.Close(); err != nil {
			s.log.Warn().Err(err).Msg("closing late preview")
		}
		return nil, false
	}
	s.preview = preview
	s.setState(StatePreviewActive)
	close(s.ready)
	return preview, true
}

// transition moves from -> to if the session is still in from.
func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.setState(to)
	return true
}

// finish moves from -> terminal, fires the completion callback outside the
// lock, then closes Done. It returns false, firing nothing, if the session
// left from in the meantime.
func (s *Session) finish(from, terminal State, r Result) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.setState(terminal)
	s.mu.Unlock()
	defer close(s.finished)

	r.SessionID = s.id
	r.Mode = s.mode
	if r.Err != nil {
		s.log.Debug().Err(r.Err).Stringer("state", terminal).Msg("capture failed")
	} else {
		s.log.Debug().Str("path", r.ImagePath).Msg("capture saved")
	}
	if s.onComplete != nil {
		s.onComplete(r)
	}
	return true
}

// setState records a transition. The caller must hold s.mu.
func (s *Session) setState(to State) {
	from := s.state
	if to != StateIdle && !canTransition(from, to) {
		panic(fmt.Sprintf("capture: illegal transition %s -> %s", from, to))
	}
	s.state = to
	s.history = append(s.history, to)
	s.log.Debug().Stringer("from", from).Stringer("to", to).Msg("capture transition")
}

func (s *Session) releasePreview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releasePreviewLocked()
}

// releasePreviewLocked unbinds the preview, if any. The caller must hold s.mu.
func (s *Session) releasePreviewLocked() {
	if s.preview == nil {
		return
	}
	if err := s.preview.Close(); err != nil {
		s.log.Warn().Err(err).Msg("unbinding preview")
	}
	s.preview = nil
}
