package pushnotification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/metrics"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/user"
)

// Dispatcher turns store events that need an admin's attention into push
// notifications: tasks awaiting verification and captures judged as not
// working.
type Dispatcher struct {
	eventBus *eventbus.Bus
	taskRepo task.Repository
	userRepo user.Repository
	sender   *Sender
	metrics  *metrics.Metrics
}

func NewDispatcher(eventBus *eventbus.Bus, taskRepo task.Repository, userRepo user.Repository, sender *Sender, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		taskRepo: taskRepo,
		userRepo: userRepo,
		sender:   sender,
		metrics:  m,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			d.metrics.StoreEvents.WithLabelValues(string(event.Type)).Inc()
			d.handle(ctx, event)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, event *eventbus.Event) {
	switch event.Type {
	case eventbus.EventTaskStatusChanged:
		if event.Metadata["status"] == string(task.StatusCompleted) {
			d.handleTaskCompleted(ctx, event)
		}
	case eventbus.EventVerificationLogged:
		if event.Metadata["is_working"] == "false" {
			d.handleNotWorking(ctx, event)
		}
	}
}

func (d *Dispatcher) handleTaskCompleted(ctx context.Context, event *eventbus.Event) {
	t, err := d.taskRepo.Get(ctx, event.ResourceID)
	if err != nil {
		slog.Error("push dispatcher: failed to get task", "id", event.ResourceID, "error", err)
		return
	}
	d.notifyAdmins(ctx, &NotificationPayload{
		Title: "Task awaiting verification",
		Body:  fmt.Sprintf("%s completed: %s", t.AssignedTo, t.Description),
		URL:   "/tasks/" + t.ID,
		Tag:   "task-" + t.ID,
	})
}

func (d *Dispatcher) handleNotWorking(ctx context.Context, event *eventbus.Event) {
	d.notifyAdmins(ctx, &NotificationPayload{
		Title: "Worker may be away",
		Body:  fmt.Sprintf("A capture of %s was judged as not working", event.Metadata["user_email"]),
		URL:   "/verifications",
		Tag:   "verification-" + event.ResourceID,
	})
}

func (d *Dispatcher) notifyAdmins(ctx context.Context, payload *NotificationPayload) {
	users, err := d.userRepo.List(ctx)
	if err != nil {
		slog.Error("push dispatcher: failed to list users", "error", err)
		return
	}
	var admins []string
	for _, u := range users {
		if u.Role == user.RoleAdmin {
			admins = append(admins, u.ID)
		}
	}
	d.sender.SendToUsers(ctx, admins, payload)
}
