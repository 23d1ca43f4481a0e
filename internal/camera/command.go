package camera

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"mvdan.cc/sh/v3/shell"
)

// CommandCamera runs a capture command (e.g. "fswebcam -q --no-banner -")
// that writes one image to stdout per invocation.
type CommandCamera struct {
	args []string
	lock exclusive
}

func NewCommandCamera(cmdline string) (*CommandCamera, error) {
	args, err := shell.Fields(cmdline, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("invalid capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty capture command")
	}
	return &CommandCamera{args: args}, nil
}

func (c *CommandCamera) Acquire(context.Context) (Stream, error) {
	if _, err := exec.LookPath(c.args[0]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := c.lock.take(); err != nil {
		return nil, err
	}
	return &commandStream{cam: c}, nil
}

type commandStream struct {
	cam      *CommandCamera
	mu       sync.Mutex
	released bool
}

func (s *commandStream) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrReleased
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.cam.args[0], s.cam.args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("capture command failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return newFrame(stdout.Bytes())
}

func (s *commandStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.cam.lock.give()
	return nil
}
