package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/timeguild/internal/access"
	"github.com/kazz187/timeguild/internal/assistant"
	"github.com/kazz187/timeguild/internal/config"
	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/identity"
	"github.com/kazz187/timeguild/internal/metrics"
	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/pushnotification"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/internal/verification"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/clog"
)

type Server struct {
	mu     sync.Mutex
	server *http.Server
	closed bool

	env                    *config.Env
	metrics                *metrics.Metrics
	identityProvider       identity.Provider
	composer               *access.Composer
	identityServer         *identity.Server
	accessServer           *access.Server
	userServer             *user.Server
	projectServer          *project.Server
	taskServer             *task.Server
	sessionServer          *session.Server
	verificationServer     *verification.Server
	assistantServer        *assistant.Server
	pushNotificationServer *pushnotification.Server
	eventStream            *eventbus.StreamHandler
}

func NewServer(
	env *config.Env,
	m *metrics.Metrics,
	identityProvider identity.Provider,
	composer *access.Composer,
	identityServer *identity.Server,
	accessServer *access.Server,
	userServer *user.Server,
	projectServer *project.Server,
	taskServer *task.Server,
	sessionServer *session.Server,
	verificationServer *verification.Server,
	assistantServer *assistant.Server,
	pushNotificationServer *pushnotification.Server,
	eventStream *eventbus.StreamHandler,
) *Server {
	return &Server{
		env:                    env,
		metrics:                m,
		identityProvider:       identityProvider,
		composer:               composer,
		identityServer:         identityServer,
		accessServer:           accessServer,
		userServer:             userServer,
		projectServer:          projectServer,
		taskServer:             taskServer,
		sessionServer:          sessionServer,
		verificationServer:     verificationServer,
		assistantServer:        assistantServer,
		pushNotificationServer: pushNotificationServer,
		eventStream:            eventStream,
	}
}

// Handler builds the full handler chain: the JSON API under /api, health
// checks and metrics, wrapped in CORS and h2c.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			s.metrics.Middleware,
			cerr.NewConvertErrorChiMiddleware(),
		)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.Unimplemented, "method not allowed", nil)
		})

		r.Post("/auth/signup", s.identityServer.SignUp)
		r.Post("/auth/signin", s.identityServer.SignIn)

		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware(s.identityProvider), s.composer.Middleware())

			r.Post("/auth/signout", s.identityServer.SignOut)
			r.Put("/auth/password", s.identityServer.ChangePassword)
			r.Get("/me", s.accessServer.Me)
			r.Get("/events", s.eventStream.ServeHTTP)

			r.With(access.Require(access.ViewUserAdmin)).Get("/users", s.userServer.ListUsers)
			r.With(access.Require(access.ViewUserAdmin)).Put("/users/{userID}/role", s.accessServer.ChangeRole)

			r.Get("/projects", s.projectServer.ListProjects)
			r.Get("/projects/{projectID}", s.projectServer.GetProject)
			r.With(access.Require(access.ViewProjectAdmin)).Post("/projects", s.projectServer.CreateProject)

			r.Get("/tasks", s.taskServer.ListTasks)
			r.Get("/tasks/{taskID}", s.taskServer.GetTask)
			r.Put("/tasks/{taskID}/status", s.taskServer.UpdateStatus)
			r.With(access.Require(access.ViewTaskAdmin)).Post("/tasks", s.taskServer.AssignTask)

			r.With(access.Require(access.ViewOwnSessions)).Get("/sessions", s.sessionServer.ListOwnSessions)
			r.With(access.Require(access.ViewOwnSessions)).Post("/sessions", s.sessionServer.CreateSession)
			r.With(access.Require(access.ViewAllSessions)).Get("/sessions/all", s.sessionServer.ListAllSessions)

			r.With(access.Require(access.ViewOwnSessions)).Post("/verifications", s.verificationServer.AppendEntry)
			r.With(access.Require(access.ViewVerificationLog)).Get("/verifications", s.verificationServer.ListEntries)

			r.With(access.Require(access.ViewSuggestion)).Post("/assistant/suggest", s.assistantServer.Suggest)
			r.With(access.Require(access.ViewOwnSessions)).Post("/assistant/verify", s.assistantServer.Verify)

			r.Get("/push/vapid-public-key", s.pushNotificationServer.GetVapidPublicKey)
			r.Post("/push/subscriptions", s.pushNotificationServer.Register)
			r.Delete("/push/subscriptions", s.pushNotificationServer.Unregister)
			r.Post("/push/test", s.pushNotificationServer.SendTestNotification)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker()))

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(mux), &http2.Server{})
}

// ListenAndServe starts the HTTP server. ctx is the base context of every
// request, so cancelling it ends open event streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.env.Addr()
	slog.Info("starting server", "addr", addr)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	srv := s.server
	s.mu.Unlock()
	return srv.ListenAndServe()
}

// Shutdown stops the server. A server shut down before it started never
// starts.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
