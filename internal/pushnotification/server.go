package pushnotification

import (
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/timeguild/internal/config"
	"github.com/kazz187/timeguild/internal/pushsubscription"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type Server struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	sender   *Sender
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, sender *Sender) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		repo:     repo,
		sender:   sender,
	}
}

type VapidPublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

type RegisterRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dh_key"`
	AuthKey   string `json:"auth_key"`
}

type UnregisterRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) GetVapidPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.vapidEnv.PublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, &VapidPublicKeyResponse{PublicKey: s.vapidEnv.PublicKey})
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	var req RegisterRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Endpoint == "" || req.P256dhKey == "" || req.AuthKey == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint, p256dh_key and auth_key are required", nil)
		return
	}
	sub := &pushsubscription.Subscription{
		ID:        ulid.Make().String(),
		UserID:    caller.ID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Save(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
	}
}

func (s *Server) Unregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	var req UnregisterRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if err := s.repo.DeleteByEndpoint(ctx, caller.ID, req.Endpoint); err != nil {
		cerr.SetJSONError(ctx, err)
	}
}

func (s *Server) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	s.sender.SendToUsers(ctx, []string{caller.ID}, &NotificationPayload{
		Title: "TimeGuild Test",
		Body:  "Push notifications are working!",
	})
}
