package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/kazz187/timeguild/internal/camera"
	"github.com/kazz187/timeguild/internal/verification"
)

const (
	DefaultSampleInterval = 60 * time.Second
	previousSessionLimit  = 3
)

// Owner identifies whose work a capture documents.
type Owner struct {
	UserID    string
	UserEmail string
	TaskID    string
}

type Stats struct {
	Captures int64
	Verified int64
	Failures int64
}

// Sampler captures a still when activated and every interval afterwards,
// submits it for verification and appends the verdict to the log.
// Failures are reported to operators only.
type Sampler struct {
	camera   camera.Camera
	verifier Verifier
	sessions SessionStore
	log      VerificationLog
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      *conc.WaitGroup
	release func()

	captures atomic.Int64
	verified atomic.Int64
	failures atomic.Int64
}

type SamplerOption func(*Sampler)

func WithSampleInterval(d time.Duration) SamplerOption {
	return func(s *Sampler) { s.interval = d }
}

func NewSampler(cam camera.Camera, verifier Verifier, sessions SessionStore, log VerificationLog, opts ...SamplerOption) *Sampler {
	if cam == nil {
		cam = camera.None{}
	}
	s := &Sampler{
		camera:   cam,
		verifier: verifier,
		sessions: sessions,
		log:      log,
		interval: DefaultSampleInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate acquires the camera and starts sampling for owner. Sampling ends
// on Deactivate or when ctx is done; the camera is released exactly once
// either way.
func (s *Sampler) Activate(ctx context.Context, owner Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("%w: sampler already active", ErrCameraUnavailable)
	}
	stream, err := s.camera.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	release := sync.OnceFunc(func() {
		if err := stream.Release(); err != nil {
			slog.Warn("failed to release camera", "error", err)
		}
	})
	s.cancel, s.release = cancel, release
	s.wg = conc.NewWaitGroup()
	s.wg.Go(func() {
		defer release()
		s.run(ctx, stream, owner)
	})
	return nil
}

// Deactivate stops sampling, aborts an in-flight verification and releases
// the camera. It is a no-op when the sampler is idle.
func (s *Sampler) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.release()
	s.cancel, s.release, s.wg = nil, nil, nil
}

func (s *Sampler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Sampler) Stats() Stats {
	return Stats{
		Captures: s.captures.Load(),
		Verified: s.verified.Load(),
		Failures: s.failures.Load(),
	}
}

func (s *Sampler) run(ctx context.Context, stream camera.Stream, owner Owner) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sample(ctx, stream, owner)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sampler) sample(ctx context.Context, stream camera.Stream, owner Owner) {
	if ctx.Err() != nil {
		return
	}
	err := s.verify(ctx, stream, owner)
	if err == nil || ctx.Err() != nil {
		return
	}
	s.failures.Add(1)
	slog.WarnContext(ctx, "work verification failed",
		"user_id", owner.UserID,
		"task_id", owner.TaskID,
		"error", err,
	)
}

func (s *Sampler) verify(ctx context.Context, stream camera.Stream, owner Owner) error {
	frame, err := stream.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	s.captures.Add(1)

	previous, err := s.previousTasks(ctx)
	if err != nil {
		slog.DebugContext(ctx, "verifying without session history", "error", err)
	}
	uri := frame.DataURI()
	result, err := s.verifier.Verify(ctx, uri, previous)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	_, err = s.log.AppendVerification(ctx, &verification.Entry{
		UserID:       owner.UserID,
		UserEmail:    owner.UserEmail,
		TaskID:       owner.TaskID,
		PhotoDataURI: uri,
		Result:       *result,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("append verification log: %w", err)
	}
	s.verified.Add(1)
	return nil
}

func (s *Sampler) previousTasks(ctx context.Context) ([]string, error) {
	sessions, err := s.sessions.ListOwnSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) > previousSessionLimit {
		sessions = sessions[:previousSessionLimit]
	}
	out := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, formatPreviousSession(sess))
	}
	return out, nil
}
