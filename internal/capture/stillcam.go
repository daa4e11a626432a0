package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrDeviceBusy is returned by Bind when a preview is already bound.
var ErrDeviceBusy = errors.New("camera already bound")

// StillCamera is a Camera backed by an image file: each capture returns the
// file's current contents. It allows one bound preview at a time.
type StillCamera struct {
	path string

	mu    sync.Mutex
	bound bool
}

// NewStillCamera returns a camera that photographs the file at path.
func NewStillCamera(path string) *StillCamera {
	return &StillCamera{path: path}
}

// Bind implements Camera.
func (c *StillCamera) Bind(ctx context.Context) (Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(c.path); err != nil {
		return nil, fmt.Errorf("opening frame source: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return nil, ErrDeviceBusy
	}
	c.bound = true
	return &stillPreview{camera: c}, nil
}

// Bound reports whether a preview currently holds the camera.
func (c *StillCamera) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

type stillPreview struct {
	camera *StillCamera
	once   sync.Once

	mu     sync.Mutex
	closed bool
}

func (p *stillPreview) Capture(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, errors.New("preview closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.camera.path)
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return data, nil
}

func (p *stillPreview) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.camera.mu.Lock()
		p.camera.bound = false
		p.camera.mu.Unlock()
	})
	return nil
}

// StaticPermission is a Permission with a fixed answer.
type StaticPermission bool

// Granted implements Permission.
func (p StaticPermission) Granted() bool { return bool(p) }

// Request implements Permission.
func (p StaticPermission) Request(context.Context) (bool, error) { return bool(p), nil }

// PromptPermission asks on out and reads a yes/no answer from in. Once
// granted it stays granted.
type PromptPermission struct {
	in  *bufio.Reader
	out io.Writer

	mu      sync.Mutex
	granted bool
}

// NewPromptPermission returns a permission that asks the user.
func NewPromptPermission(in io.Reader, out io.Writer) *PromptPermission {
	return &PromptPermission{in: bufio.NewReader(in), out: out}
}

// Granted implements Permission.
func (p *PromptPermission) Granted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

// Request implements Permission. The read itself cannot be interrupted;
// ctx is checked before asking.
func (p *PromptPermission) Request(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprint(p.out, "Allow larder to use the camera? [y/N] ")
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	ok := answer == "y" || answer == "yes"

	p.mu.Lock()
	p.granted = ok
	p.mu.Unlock()
	return ok, nil
}
