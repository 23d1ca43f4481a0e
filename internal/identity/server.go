package identity

import (
	"context"
	"net/http"

	"github.com/kazz187/timeguild/pkg/cerr"
)

// SignInHook runs after every successful sign-up or sign-in, before the
// token is handed out.
type SignInHook func(ctx context.Context, id Identity) error

type Server struct {
	provider Provider
	onSignIn SignInHook
}

func NewServer(provider Provider, onSignIn SignInHook) *Server {
	return &Server{provider: provider, onSignIn: onSignIn}
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, s.provider.SignUp, true)
}

func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, s.provider.SignIn, false)
}

func (s *Server) handleCredentials(_ http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (*Token, error), created bool) {
	ctx := r.Context()
	var req CredentialsRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tok, err := fn(ctx, req.Email, req.Password)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if s.onSignIn != nil {
		if err := s.onSignIn(ctx, tok.Identity); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}
	if created {
		cerr.SetCreatedJSONResponse(ctx, tok)
		return
	}
	cerr.SetJSONResponse(ctx, tok)
}

// SignOut revokes the caller's token. Requires Middleware.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, _ := BearerToken(r.Header.Get("Authorization"))
	if err := s.provider.SignOut(ctx, token); err != nil {
		cerr.SetJSONError(ctx, err)
	}
}

// ChangePassword requires Middleware.
func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ChangePasswordRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	token, _ := BearerToken(r.Header.Get("Authorization"))
	if err := s.provider.ChangePassword(ctx, token, req.CurrentPassword, req.NewPassword); err != nil {
		cerr.SetJSONError(ctx, err)
	}
}
