package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnavailable means no device could be acquired.
	ErrUnavailable = errors.New("camera unavailable")
	// ErrBusy means the device is already held by another stream.
	ErrBusy = errors.New("camera busy")
	// ErrNoFrame means the device produced nothing to capture yet.
	ErrNoFrame = errors.New("no frame available")
	// ErrReleased is returned by Capture after Release.
	ErrReleased = errors.New("camera stream released")
)

type Frame struct {
	MIMEType   string
	Data       []byte
	CapturedAt time.Time
}

// DataURI encodes the frame as data:<mime>;base64,<payload>.
func (f *Frame) DataURI() string {
	return "data:" + f.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

func newFrame(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("captured data is %s, not an image", mime)
	}
	return &Frame{MIMEType: mime, Data: data, CapturedAt: time.Now()}, nil
}

// Camera is a capture device. At most one Stream is open at a time.
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

type Stream interface {
	Capture(ctx context.Context) (*Frame, error)
	// Release frees the device. Calling it more than once is harmless.
	Release() error
}

// exclusive hands out the single permit of a device.
type exclusive struct {
	mu   sync.Mutex
	held bool
}

func (e *exclusive) take() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.held {
		return ErrBusy
	}
	e.held = true
	return nil
}

func (e *exclusive) give() {
	e.mu.Lock()
	e.held = false
	e.mu.Unlock()
}

// None is the camera of machines without one.
type None struct{}

func (None) Acquire(context.Context) (Stream, error) {
	return nil, fmt.Errorf("%w: no camera configured", ErrUnavailable)
}

// Parse builds a camera from "command:<cmdline>", "dir:<path>",
// "http:<url>" (or a bare http(s) URL) and "none".
func Parse(spec string) (Camera, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "none" {
		return None{}, nil
	}
	if strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") {
		return NewHTTPCamera(spec, nil), nil
	}
	kind, arg, ok := strings.Cut(spec, ":")
	if !ok || arg == "" {
		return nil, fmt.Errorf("invalid camera %q", spec)
	}
	switch kind {
	case "command":
		return NewCommandCamera(arg)
	case "dir":
		return NewDirCamera(arg), nil
	case "http":
		return NewHTTPCamera(arg, nil), nil
	default:
		return nil, fmt.Errorf("unknown camera kind %q", kind)
	}
}
