package camera

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// DirCamera serves the newest image dropped into a directory, for capture
// tools that write snapshots to disk on their own schedule.
type DirCamera struct {
	dir  string
	lock exclusive
}

func NewDirCamera(dir string) *DirCamera {
	return &DirCamera{dir: dir}
}

func (c *DirCamera) Acquire(ctx context.Context) (Stream, error) {
	info, err := os.Stat(c.dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnavailable, c.dir)
	}
	if err := c.lock.take(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.lock.give()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		c.lock.give()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	s := &dirStream{cam: c, watcher: watcher, done: make(chan struct{})}
	s.latest = newestImage(c.dir)
	go s.watch()
	return s, nil
}

type dirStream struct {
	cam     *DirCamera
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu       sync.Mutex
	latest   string
	released bool
}

func (s *dirStream) watch() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !imageExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			s.mu.Lock()
			s.latest = event.Name
			s.mu.Unlock()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("camera directory watch error", "dir", s.cam.dir, "error", err)
		}
	}
}

func (s *dirStream) Capture(context.Context) (*Frame, error) {
	s.mu.Lock()
	released, latest := s.released, s.latest
	s.mu.Unlock()
	if released {
		return nil, ErrReleased
	}
	if latest == "" {
		return nil, ErrNoFrame
	}
	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return newFrame(data)
}

func (s *dirStream) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.mu.Unlock()

	err := s.watcher.Close()
	<-s.done
	s.cam.lock.give()
	return err
}

func newestImage(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var (
		newest string
		best   int64
	)
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if t := info.ModTime().UnixNano(); newest == "" || t > best {
			newest, best = filepath.Join(dir, e.Name()), t
		}
	}
	return newest
}
