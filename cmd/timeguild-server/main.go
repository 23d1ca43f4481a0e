package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"

	server "github.com/kazz187/timeguild/internal"
	"github.com/kazz187/timeguild/internal/access"
	"github.com/kazz187/timeguild/internal/assistant"
	"github.com/kazz187/timeguild/internal/config"
	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/identity"
	"github.com/kazz187/timeguild/internal/metrics"
	"github.com/kazz187/timeguild/internal/project"
	projectrepo "github.com/kazz187/timeguild/internal/project/repositoryimpl"
	"github.com/kazz187/timeguild/internal/pushnotification"
	pushsubrepo "github.com/kazz187/timeguild/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/timeguild/internal/session"
	sessionrepo "github.com/kazz187/timeguild/internal/session/repositoryimpl"
	"github.com/kazz187/timeguild/internal/task"
	taskrepo "github.com/kazz187/timeguild/internal/task/repositoryimpl"
	"github.com/kazz187/timeguild/internal/user"
	userrepo "github.com/kazz187/timeguild/internal/user/repositoryimpl"
	"github.com/kazz187/timeguild/internal/verification"
	verificationrepo "github.com/kazz187/timeguild/internal/verification/repositoryimpl"
	"github.com/kazz187/timeguild/pkg/clog"
	"github.com/kazz187/timeguild/pkg/panicerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	if err := run(env); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func openStorage(ctx context.Context, env *config.StorageEnv) (storage.Storage, func() error, error) {
	noop := func() error { return nil }
	switch env.Type {
	case "s3":
		s, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return s, noop, nil
	case "sqlite":
		s, err := storage.NewSQLiteStorage(ctx, env.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		return s, s.Close, nil
	case "", "local":
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", env.Type)
	}
}

func run(env *config.Env) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, closeStore, err := openStorage(ctx, &env.StorageEnv)
	if err != nil {
		return err
	}
	defer closeStore()

	bus := eventbus.New()
	m := metrics.New()

	// Setup repositories
	userRepo := userrepo.NewYAMLRepository(store)
	projectRepo := projectrepo.NewYAMLRepository(store)
	taskRepo := taskrepo.NewYAMLRepository(store)
	sessionRepo := sessionrepo.NewYAMLRepository(store)
	verificationRepo := verificationrepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)

	// Setup identity and roles
	provider := identity.NewLocalProvider(store, env.JWTSecret, env.TokenTTL)
	composer := access.NewComposer(userRepo, bus, env.BootstrapAdminEmail)
	identityServer := identity.NewServer(provider, func(ctx context.Context, id identity.Identity) error {
		_, err := composer.Resolve(ctx, id)
		return err
	})

	// Setup assistant
	assistantService := assistant.NewService(assistant.NewClaudeModel(), m, env.AssistantEnv.Timeout, env.AssistantEnv.WorkDir)

	// Setup push notification
	if !env.VAPIDEnv.Enabled() {
		slog.Warn("VAPID keys not configured, push notifications are disabled")
	}
	pushSender := pushnotification.NewSender(&env.VAPIDEnv, pushSubRepo, m)
	pushNotificationServer := pushnotification.NewServer(&env.VAPIDEnv, pushSubRepo, pushSender)
	pushDispatcher := pushnotification.NewDispatcher(bus, taskRepo, userRepo, pushSender, m)

	srv := server.NewServer(
		env,
		m,
		provider,
		composer,
		identityServer,
		access.NewServer(composer),
		user.NewServer(userRepo),
		project.NewServer(projectRepo, bus),
		task.NewServer(taskRepo, projectRepo, userRepo, bus),
		session.NewServer(sessionRepo, userRepo, bus),
		verification.NewServer(verificationRepo, userRepo, bus),
		assistant.NewServer(assistantService),
		pushNotificationServer,
		eventbus.NewStreamHandler(bus, access.CanSeeEvent),
	)

	var relay *eventbus.Relay
	if env.NATSEnv.URL != "" {
		conn, err := eventbus.ConnectNATS(env.NATSEnv.URL)
		if err != nil {
			return err
		}
		defer conn.Drain()
		relay = eventbus.NewRelay(bus, conn, env.NATSEnv.SubjectPrefix)
		slog.Info("relaying store events to nats", "url", env.NATSEnv.URL, "prefix", env.NATSEnv.SubjectPrefix)
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		pushDispatcher.Start(ctx)
		return nil
	}))
	if relay != nil {
		p.Go(panicerr.SafeContext(relay.Run))
	}
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}))
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return p.Wait()
}
