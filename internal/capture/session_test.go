package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/internal/imagestore"
	"github.com/mesh-intelligence/larder/pkg/types"
)

const waitFor = 2 * time.Second

// fakeCamera records how many previews are bound at once. When gate is set,
// Bind blocks until it is closed, ignoring ctx, so tests can deliver a bind
// result after the session has moved on. When shutter is set, Capture
// blocks the same way until it is closed.
type fakeCamera struct {
	frame      []byte
	bindErr    error
	captureErr error
	gate       chan struct{}
	shutter    chan struct{}

	mu        sync.Mutex
	binds     int
	active    int
	maxActive int
}

func (c *fakeCamera) Bind(ctx context.Context) (Preview, error) {
	if c.gate != nil {
		<-c.gate
	}
	if c.bindErr != nil {
		return nil, c.bindErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binds++
	c.active++
	c.maxActive = max(c.maxActive, c.active)
	return &fakePreview{camera: c}, nil
}

func (c *fakeCamera) stats() (binds, active, maxActive int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binds, c.active, c.maxActive
}

type fakePreview struct {
	camera *fakeCamera
	once   sync.Once
}

func (p *fakePreview) Capture(ctx context.Context) ([]byte, error) {
	if p.camera.shutter != nil {
		<-p.camera.shutter
	}
	if p.camera.captureErr != nil {
		return nil, p.camera.captureErr
	}
	return p.camera.frame, nil
}

func (p *fakePreview) Close() error {
	p.once.Do(func() {
		p.camera.mu.Lock()
		p.camera.active--
		p.camera.mu.Unlock()
	})
	return nil
}

// hookStore runs beforeSave on the worker goroutine ahead of each write.
type hookStore struct {
	*imagestore.Store
	beforeSave func()
}

func (h *hookStore) Save(data []byte) (string, error) {
	if h.beforeSave != nil {
		h.beforeSave()
	}
	return h.Store.Save(data)
}

// recorder collects completion callbacks.
type recorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *recorder) done(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

// testFrame is a 4x2 PNG; the saved image must come out 2x4.
func testFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := range 2 {
		for x := range 4 {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 120), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func setupStore(t *testing.T) *imagestore.Store {
	t.Helper()
	s, err := imagestore.New(t.TempDir(), 0)
	require.NoError(t, err)
	return s
}

func imageFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, waitFor, time.Millisecond,
		"session stuck in %s, want %s", s.State(), want)
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSessionSavesRotatedFrame(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t)}
	store := setupStore(t)
	rec := &recorder{}
	c := NewController(cam, StaticPermission(true), store)

	s := c.Open(context.Background(), ModeBarcode, rec.done)
	waitState(t, s, StatePreviewActive)
	require.NoError(t, s.Capture())
	waitClosed(t, s.Done(), "completion")
	waitClosed(t, s.Stopped(), "worker exit")

	assert.Equal(t, StateSaved, s.State())
	assert.Equal(t, []State{
		StateIdle, StatePermissionPending, StatePreviewBinding, StatePreviewActive,
		StateCapturing, StateCaptured, StateSaved,
	}, s.History())

	results := rec.all()
	require.Len(t, results, 1, "completion fires exactly once")
	res := results[0]
	require.NoError(t, res.Err)
	assert.Equal(t, s.ID(), res.SessionID)
	assert.Equal(t, ModeBarcode, res.Mode)

	onDisk, err := os.ReadFile(res.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, res.Image, onDisk)

	img, err := jpeg.Decode(bytes.NewReader(onDisk))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	_, active, _ := cam.stats()
	assert.Zero(t, active, "preview unbound after capture")
}

func TestSessionIDsAreUnique(t *testing.T) {
	c := NewController(&fakeCamera{frame: testFrame(t)}, StaticPermission(true), setupStore(t))
	a := c.Open(context.Background(), ModeFreeform, nil)
	b := c.Open(context.Background(), ModeFreeform, nil)
	assert.NotEqual(t, a.ID(), b.ID())
	require.NoError(t, c.Close(context.Background()))
}

func TestSessionPermissionDenied(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t)}
	rec := &recorder{}
	c := NewController(cam, StaticPermission(false), setupStore(t))

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	waitClosed(t, s.Done(), "completion")

	assert.Equal(t, StatePermissionDenied, s.State())
	results := rec.all()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, types.ErrPermissionDenied)

	binds, _, _ := cam.stats()
	assert.Zero(t, binds, "camera is never bound without permission")
}

func TestSessionRequestsPermission(t *testing.T) {
	var out bytes.Buffer
	perm := NewPromptPermission(strings.NewReader("yes\n"), &out)
	c := NewController(&fakeCamera{frame: testFrame(t)}, perm, setupStore(t))

	s := c.Open(context.Background(), ModeFreeform, nil)
	waitState(t, s, StatePreviewActive)
	assert.Contains(t, out.String(), "camera")
	assert.True(t, perm.Granted())
	require.NoError(t, c.Close(context.Background()))
}

func TestSessionBindFailure(t *testing.T) {
	cam := &fakeCamera{bindErr: errors.New("no such device")}
	rec := &recorder{}
	c := NewController(cam, StaticPermission(true), setupStore(t))

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	waitClosed(t, s.Done(), "completion")

	assert.Equal(t, StateCaptureError, s.State())
	results := rec.all()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, types.ErrDeviceUnavailable)
	assert.Equal(t, "Error starting camera", types.Notice(results[0].Err))
}

func TestSessionCaptureFaultWritesNothing(t *testing.T) {
	cam := &fakeCamera{captureErr: errors.New("sensor fault")}
	store := setupStore(t)
	rec := &recorder{}
	c := NewController(cam, StaticPermission(true), store)

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	waitState(t, s, StatePreviewActive)
	require.NoError(t, s.Capture())
	waitClosed(t, s.Done(), "completion")

	assert.Equal(t, StateCaptureError, s.State())
	results := rec.all()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrCaptureFailed)
	assert.Empty(t, imageFiles(t, store.Dir()))
}

func TestSessionUndecodableFrame(t *testing.T) {
	cam := &fakeCamera{frame: []byte("not an image")}
	store := setupStore(t)
	rec := &recorder{}
	c := NewController(cam, StaticPermission(true), store)

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	waitState(t, s, StatePreviewActive)
	require.NoError(t, s.Capture())
	waitClosed(t, s.Done(), "completion")

	assert.Equal(t, StateCaptureError, s.State())
	require.Len(t, rec.all(), 1)
	assert.ErrorIs(t, rec.all()[0].Err, types.ErrIOFailure)
	assert.Empty(t, imageFiles(t, store.Dir()))
}

func TestCaptureOutsidePreviewActive(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t), gate: make(chan struct{})}
	rec := &recorder{}
	c := NewController(cam, StaticPermission(true), setupStore(t))

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	waitState(t, s, StatePreviewBinding)

	err := s.Capture()
	assert.ErrorIs(t, err, types.ErrInvalidState)
	assert.Equal(t, StatePreviewBinding, s.State(), "rejected capture changes nothing")

	close(cam.gate)
	waitState(t, s, StatePreviewActive)
	require.NoError(t, s.Capture())
	waitClosed(t, s.Done(), "completion")

	assert.ErrorIs(t, s.Capture(), types.ErrInvalidState, "terminal session rejects capture")
	assert.Len(t, rec.all(), 1)
}

func TestCancelFromPreviewActive(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t)}
	rec := &recorder{}
	c := NewController(cam, StaticPermission(true), setupStore(t))

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	waitState(t, s, StatePreviewActive)

	s.Cancel()
	assert.Equal(t, StateIdle, s.State())
	waitClosed(t, s.Done(), "cancel")
	waitClosed(t, s.Stopped(), "worker exit")

	s.Cancel()
	assert.Equal(t, StateIdle, s.State(), "second cancel is a no-op")
	assert.ErrorIs(t, s.Capture(), types.ErrInvalidState)

	assert.Empty(t, rec.all(), "cancelled sessions never complete")
	_, active, _ := cam.stats()
	assert.Zero(t, active)
}

func TestCancelDropsLateBind(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t), gate: make(chan struct{})}
	rec := &recorder{}
	c := NewController(cam, StaticPermission(true), setupStore(t))

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	waitState(t, s, StatePreviewBinding)

	s.Cancel()
	close(cam.gate)
	waitClosed(t, s.Stopped(), "worker exit")

	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, rec.all())
	binds, active, _ := cam.stats()
	assert.Equal(t, 1, binds)
	assert.Zero(t, active, "late preview is closed")
}

func TestCancelWhileCapturingDropsFrame(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t), shutter: make(chan struct{})}
	store := setupStore(t)
	rec := &recorder{}
	c := NewController(cam, StaticPermission(true), store)

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	waitState(t, s, StatePreviewActive)
	require.NoError(t, s.Capture())
	assert.Equal(t, StateCapturing, s.State())

	s.Cancel()
	assert.Equal(t, StateIdle, s.State())
	close(cam.shutter)
	waitClosed(t, s.Stopped(), "worker exit")

	assert.Equal(t, StateIdle, s.State(), "late frame does not revive the session")
	assert.Empty(t, rec.all())
	assert.Empty(t, imageFiles(t, store.Dir()), "late frame is not saved")
	_, active, _ := cam.stats()
	assert.Zero(t, active)
}

func TestCancelWhileSavingRemovesFile(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t)}
	store := setupStore(t)
	rec := &recorder{}
	hook := &hookStore{Store: store}
	c := NewController(cam, StaticPermission(true), hook)

	s := c.Open(context.Background(), ModeFreeform, rec.done)
	hook.beforeSave = s.Cancel
	waitState(t, s, StatePreviewActive)
	require.NoError(t, s.Capture())
	waitClosed(t, s.Stopped(), "worker exit")

	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, rec.all())
	assert.Empty(t, imageFiles(t, store.Dir()), "orphaned image is removed")
}

func TestOpenCancelsPreviousSession(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t)}
	recA, recB := &recorder{}, &recorder{}
	c := NewController(cam, StaticPermission(true), setupStore(t))

	a := c.Open(context.Background(), ModeFreeform, recA.done)
	waitState(t, a, StatePreviewActive)

	b := c.Open(context.Background(), ModeBarcode, recB.done)
	waitState(t, b, StatePreviewActive)

	assert.Equal(t, StateIdle, a.State())
	assert.Same(t, b, c.Current())
	_, active, maxActive := cam.stats()
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, maxActive, "two sessions never hold the device together")

	require.NoError(t, b.Capture())
	waitClosed(t, b.Done(), "completion")
	assert.Empty(t, recA.all())
	require.Len(t, recB.all(), 1)
	assert.Equal(t, ModeBarcode, recB.all()[0].Mode)
}

func TestOpenWaitsForPreviousTeardown(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t), gate: make(chan struct{})}
	c := NewController(cam, StaticPermission(true), setupStore(t))

	a := c.Open(context.Background(), ModeFreeform, nil)
	waitState(t, a, StatePreviewBinding)

	b := c.Open(context.Background(), ModeFreeform, nil)
	assert.Equal(t, StatePermissionPending, b.State(), "new session waits for the old one")

	close(cam.gate)
	waitState(t, b, StatePreviewActive)
	waitClosed(t, a.Stopped(), "old worker exit")

	binds, active, maxActive := cam.stats()
	assert.Equal(t, 2, binds)
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, maxActive)
	require.NoError(t, c.Close(context.Background()))
}

func TestContextCancelCancelsSession(t *testing.T) {
	rec := &recorder{}
	c := NewController(&fakeCamera{frame: testFrame(t)}, StaticPermission(true), setupStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	s := c.Open(ctx, ModeFreeform, rec.done)
	waitState(t, s, StatePreviewActive)

	cancel()
	waitClosed(t, s.Stopped(), "worker exit")
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, rec.all())
}

func TestControllerClose(t *testing.T) {
	cam := &fakeCamera{frame: testFrame(t)}
	c := NewController(cam, StaticPermission(true), setupStore(t))
	require.NoError(t, c.Close(context.Background()), "close with no session")

	s := c.Open(context.Background(), ModeFreeform, nil)
	waitState(t, s, StatePreviewActive)
	require.NoError(t, c.Close(context.Background()))

	assert.Nil(t, c.Current())
	assert.Equal(t, StateIdle, s.State())
	_, active, _ := cam.stats()
	assert.Zero(t, active)
}
