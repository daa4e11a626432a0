// Package capture coordinates a single photograph acquisition: permission,
// preview binding, shutter trigger, frame correction, and persistence of the
// resulting image. Device and permission access are collaborators behind
// small interfaces; the package owns only the session state machine.
package capture

import (
	"context"
	"fmt"
)

// Permission answers whether the app may use the camera and asks the user
// when it may not.
type Permission interface {
	// Granted reports whether permission is already held.
	Granted() bool
	// Request asks for permission and blocks until the user decides or ctx
	// is done.
	Request(ctx context.Context) (bool, error)
}

// Camera binds preview streams on the capture device.
type Camera interface {
	// Bind starts a preview and blocks until it can accept a capture or ctx
	// is done. A busy or unsupported device returns an error.
	Bind(ctx context.Context) (Preview, error)
}

// Preview is a live, bound preview stream.
type Preview interface {
	// Capture takes one picture and returns the encoded frame bytes.
	Capture(ctx context.Context) ([]byte, error)
	// Close unbinds the stream. It must be safe to call more than once.
	Close() error
}

// ImageSaver persists processed frames.
type ImageSaver interface {
	Save(data []byte) (string, error)
	Delete(path string) (bool, error)
}

// Mode tags why a capture was started. The session passes it through to the
// Result without interpreting it.
type Mode int

// Capture modes.
const (
	ModeFreeform Mode = iota
	ModeBarcode
)

func (m Mode) String() string {
	switch m {
	case ModeFreeform:
		return "freeform"
	case ModeBarcode:
		return "barcode"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "freeform", "custom":
		return ModeFreeform, nil
	case "barcode", "barcode-scan":
		return ModeBarcode, nil
	default:
		return 0, fmt.Errorf("unknown capture mode %q (valid: freeform, barcode)", s)
	}
}

// Result is delivered to the completion callback exactly once per session
// that reaches a terminal state. Err is nil on success.
type Result struct {
	SessionID string
	Mode      Mode
	Image     []byte
	ImagePath string
	Err       error
}

// Completion receives the outcome of a session.
type Completion func(Result)
