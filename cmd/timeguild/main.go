package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/timeguild/pkg/clog"
	"github.com/kazz187/timeguild/pkg/color"
)

var (
	app = kingpin.New("timeguild", "Work-time tracking with camera-verified sessions")

	serverURL = app.Flag("server", "TimeGuild server URL").Envar("TIMEGUILD_SERVER_URL").Default("http://localhost:3100").String()
	verbose   = app.Flag("verbose", "Log debug output to stderr").Short('v').Bool()

	// Account commands
	loginCmd   = app.Command("login", "Sign in and cache the token")
	loginEmail = loginCmd.Flag("email", "Account email").Required().String()

	signupCmd   = app.Command("signup", "Create an account and sign in")
	signupEmail = signupCmd.Flag("email", "Account email").Required().String()

	logoutCmd = app.Command("logout", "Revoke and forget the cached token")
	passwdCmd = app.Command("passwd", "Change your password")
	whoamiCmd = app.Command("whoami", "Show the signed-in user and role")

	// Worker commands
	tasksCmd      = app.Command("tasks", "List your tasks (admins: all tasks)")
	tasksAssignee = tasksCmd.Flag("assignee", "Only tasks assigned to this email (admins)").String()
	tasksWatch    = tasksCmd.Flag("watch", "Keep following task changes").Bool()

	workCmd    = app.Command("work", "Track time on a task in the terminal")
	workTaskID = workCmd.Arg("task-id", "Task ID").Required().String()
	workCamera = workCmd.Flag("camera", "Capture source: command:<cmdline>, dir:<path>, http:<url> or none").Envar("TIMEGUILD_CAMERA").Default("none").String()
	workEvery  = workCmd.Flag("sample-interval", "Time between work verification captures").Default("60s").Duration()

	completeCmd    = app.Command("complete", "Mark a task as completed")
	completeTaskID = completeCmd.Arg("task-id", "Task ID").Required().String()

	suggestCmd  = app.Command("suggest", "Ask which project a piece of work belongs to")
	suggestDesc = suggestCmd.Arg("description", "What you are about to do").Required().Strings()

	sessionsCmd   = app.Command("sessions", "Show your session history")
	sessionsWatch = sessionsCmd.Flag("watch", "Keep following new sessions").Bool()

	// Admin commands
	projectCmd          = app.Command("project", "Project administration")
	projectCreateCmd    = projectCmd.Command("create", "Create a project")
	projectCreateName   = projectCreateCmd.Arg("name", "Project name").Required().String()
	projectCreateClient = projectCreateCmd.Arg("client", "Client name").Required().String()
	projectListCmd      = projectCmd.Command("list", "List projects")

	taskCmd          = app.Command("task", "Task administration")
	taskAssignCmd    = taskCmd.Command("assign", "Assign a new task")
	taskAssignProj   = taskAssignCmd.Arg("project-id", "Project ID").Required().String()
	taskAssignTo     = taskAssignCmd.Arg("assignee", "Assignee email").Required().String()
	taskAssignDesc   = taskAssignCmd.Arg("description", "Task description").Required().Strings()
	taskVerifyCmd    = taskCmd.Command("verify", "Verify a completed task")
	taskVerifyTaskID = taskVerifyCmd.Arg("task-id", "Task ID").Required().String()

	userCmd        = app.Command("user", "User administration")
	userListCmd    = userCmd.Command("list", "List users")
	userRoleCmd    = userCmd.Command("role", "Change a user's role")
	userRoleUserID = userRoleCmd.Arg("user-id", "User ID").Required().String()
	userRoleRole   = userRoleCmd.Arg("role", "admin or worker").Required().Enum("admin", "worker")

	logCmd   = app.Command("log", "Show the verification log of all users")
	logWatch = logCmd.Flag("watch", "Keep following new entries").Bool()

	allSessionsCmd   = app.Command("all-sessions", "Show the sessions of all users")
	allSessionsWatch = allSessionsCmd.Flag("watch", "Keep following new sessions").Bool()

	pushCmd            = app.Command("push", "Web push subscriptions")
	pushKeyCmd         = pushCmd.Command("key", "Print the server's VAPID public key")
	pushSubscribeCmd   = pushCmd.Command("subscribe", "Register a push subscription")
	pushSubEndpoint    = pushSubscribeCmd.Arg("endpoint", "Push service endpoint URL").Required().String()
	pushSubP256dh      = pushSubscribeCmd.Arg("p256dh", "Subscription p256dh key").Required().String()
	pushSubAuth        = pushSubscribeCmd.Arg("auth", "Subscription auth secret").Required().String()
	pushUnsubscribeCmd = pushCmd.Command("unsubscribe", "Remove a push subscription")
	pushUnsubEndpoint  = pushUnsubscribeCmd.Arg("endpoint", "Push service endpoint URL").Required().String()
	pushTestCmd        = pushCmd.Command("test", "Send yourself a test push notification")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	handler := clog.NewTextHandler(os.Stderr, clog.WithLevel(level), clog.WithColumns("task_id", "goroutine"))
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, command); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.Failure("Error:"), err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, command string) error {
	c, err := newCLI(*serverURL, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	switch command {
	case loginCmd.FullCommand():
		return c.login(ctx, *loginEmail, false)
	case signupCmd.FullCommand():
		return c.login(ctx, *signupEmail, true)
	case logoutCmd.FullCommand():
		return c.logout(ctx)
	case passwdCmd.FullCommand():
		return c.passwd(ctx)
	case whoamiCmd.FullCommand():
		return c.whoami(ctx)
	case tasksCmd.FullCommand():
		return c.tasks(ctx, *tasksAssignee, *tasksWatch)
	case workCmd.FullCommand():
		return c.work(ctx, *workTaskID, *workCamera, *workEvery)
	case completeCmd.FullCommand():
		return c.complete(ctx, *completeTaskID)
	case suggestCmd.FullCommand():
		return c.suggest(ctx, *suggestDesc)
	case sessionsCmd.FullCommand():
		return c.sessions(ctx, *sessionsWatch)
	case projectCreateCmd.FullCommand():
		return c.createProject(ctx, *projectCreateName, *projectCreateClient)
	case projectListCmd.FullCommand():
		return c.listProjects(ctx)
	case taskAssignCmd.FullCommand():
		return c.assignTask(ctx, *taskAssignProj, *taskAssignTo, *taskAssignDesc)
	case taskVerifyCmd.FullCommand():
		return c.verifyTask(ctx, *taskVerifyTaskID)
	case userListCmd.FullCommand():
		return c.listUsers(ctx)
	case userRoleCmd.FullCommand():
		return c.changeRole(ctx, *userRoleUserID, *userRoleRole)
	case logCmd.FullCommand():
		return c.verificationLog(ctx, *logWatch)
	case allSessionsCmd.FullCommand():
		return c.allSessions(ctx, *allSessionsWatch)
	case pushKeyCmd.FullCommand():
		return c.pushKey(ctx)
	case pushSubscribeCmd.FullCommand():
		return c.pushSubscribe(ctx, *pushSubEndpoint, *pushSubP256dh, *pushSubAuth)
	case pushUnsubscribeCmd.FullCommand():
		return c.pushUnsubscribe(ctx, *pushUnsubEndpoint)
	case pushTestCmd.FullCommand():
		return c.pushTest(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
