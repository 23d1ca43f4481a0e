package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kazz187/timeguild/pkg/cerr"
)

// ErrAuth is the root of every identity failure.
var ErrAuth = errors.New("authentication failed")

const MinPasswordLength = 6

// Identity is an authenticated principal.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Identity    Identity  `json:"identity"`
}

// Provider is the identity collaborator. Credential and token failures wrap
// ErrAuth; storage failures are reported with their own codes.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Token, error)
	SignIn(ctx context.Context, email, password string) (*Token, error)
	SignOut(ctx context.Context, accessToken string) error
	// ChangePassword re-authenticates with current before replacing it.
	ChangePassword(ctx context.Context, accessToken, current, next string) error
	Authenticate(ctx context.Context, accessToken string) (*Identity, error)
}

func errInvalidCredentials() error {
	return cerr.NewError(cerr.Unauthenticated, "invalid email or password", ErrAuth)
}

func errWeakPassword() error {
	return cerr.NewError(cerr.InvalidArgument, "password must be at least 6 characters", ErrAuth)
}

func errEmailInUse() error {
	return cerr.NewError(cerr.AlreadyExists, "email already in use", ErrAuth)
}

func errReauthFailed() error {
	return cerr.NewError(cerr.Unauthenticated, "current password is incorrect", ErrAuth)
}

func errInvalidToken(err error) error {
	return cerr.NewError(cerr.Unauthenticated, "invalid or expired token", errors.Join(ErrAuth, err))
}

type ctxKey struct{}

func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
