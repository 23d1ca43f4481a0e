package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/verification"
	"github.com/kazz187/timeguild/pkg/cerr"
)

// Events follows /api/events and calls fn for every change notification
// until ctx is done or the stream breaks.
func (c *Client) Events(ctx context.Context, fn func(*eventbus.Event)) error {
	return c.events(ctx, nil, fn)
}

// events calls onOpen once the server has subscribed the stream, so
// nothing published after onOpen starts is missed.
func (c *Client) events(ctx context.Context, onOpen func() error, fn func(*eventbus.Event)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	// the stream outlives any request timeout
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "server unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if onOpen != nil {
		if err := onOpen(); err != nil {
			return err
		}
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var e eventbus.Event
			if err := json.Unmarshal([]byte(data.String()), &e); err != nil {
				return fmt.Errorf("malformed event: %w", err)
			}
			data.Reset()
			fn(&e)
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return cerr.NewError(cerr.Unavailable, "event stream broken", err)
	}
	return cerr.NewError(cerr.Unavailable, "event stream closed", nil)
}

// watch calls refetch once the stream is open, then again on every event
// accepted by match.
func (c *Client) watch(ctx context.Context, match func(*eventbus.Event) bool, refetch func() error) error {
	var refetchErr error
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	err := c.events(streamCtx, refetch, func(e *eventbus.Event) {
		if !match(e) {
			return
		}
		if err := refetch(); err != nil {
			refetchErr = err
			cancel()
		}
	})
	if refetchErr != nil {
		return refetchErr
	}
	return err
}

// WatchOwnSessions delivers the caller's sessions, newest first, now and
// after every new session.
func (c *Client) WatchOwnSessions(ctx context.Context, fn func([]*session.Session)) error {
	return c.watch(ctx, isType(eventbus.EventSessionCreated), func() error {
		sessions, err := c.ListOwnSessions(ctx)
		if err != nil {
			return err
		}
		fn(sessions)
		return nil
	})
}

func (c *Client) WatchAllSessions(ctx context.Context, fn func([]*session.Session)) error {
	return c.watch(ctx, isType(eventbus.EventSessionCreated), func() error {
		sessions, err := c.ListAllSessions(ctx)
		if err != nil {
			return err
		}
		fn(sessions)
		return nil
	})
}

func (c *Client) WatchVerifications(ctx context.Context, fn func([]*verification.Entry)) error {
	return c.watch(ctx, isType(eventbus.EventVerificationLogged), func() error {
		entries, err := c.ListVerifications(ctx)
		if err != nil {
			return err
		}
		fn(entries)
		return nil
	})
}

func (c *Client) WatchTasks(ctx context.Context, assignedTo string, fn func([]*task.Task)) error {
	match := isType(eventbus.EventTaskCreated, eventbus.EventTaskUpdated, eventbus.EventTaskStatusChanged)
	return c.watch(ctx, match, func() error {
		tasks, err := c.ListTasks(ctx, assignedTo)
		if err != nil {
			return err
		}
		fn(tasks)
		return nil
	})
}

func isType(types ...eventbus.EventType) func(*eventbus.Event) bool {
	return func(e *eventbus.Event) bool {
		return slices.Contains(types, e.Type)
	}
}

func sortSessions(s []*session.Session) {
	slices.SortStableFunc(s, func(a, b *session.Session) int {
		return b.StartTime.Compare(a.StartTime)
	})
}

func sortEntries(e []*verification.Entry) {
	slices.SortStableFunc(e, func(a, b *verification.Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
