package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const maxSnapshotSize = 8 << 20

// HTTPCamera fetches a still from a snapshot URL, as exposed by most IP
// cameras and webcam daemons.
type HTTPCamera struct {
	url    string
	client *http.Client
	lock   exclusive
}

func NewHTTPCamera(url string, client *http.Client) *HTTPCamera {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPCamera{url: url, client: client}
}

func (c *HTTPCamera) Acquire(ctx context.Context) (Stream, error) {
	if err := c.lock.take(); err != nil {
		return nil, err
	}
	s := &httpStream{cam: c}
	// Probe once so an unreachable camera is reported at acquisition.
	if _, err := s.fetch(ctx); err != nil {
		c.lock.give()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return s, nil
}

type httpStream struct {
	cam      *HTTPCamera
	mu       sync.Mutex
	released bool
}

func (s *httpStream) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return nil, ErrReleased
	}
	return s.fetch(ctx)
}

func (s *httpStream) fetch(ctx context.Context) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cam.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.cam.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return newFrame(data)
}

func (s *httpStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.released {
		s.released = true
		s.cam.lock.give()
	}
	return nil
}
