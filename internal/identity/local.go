package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

const (
	accountsPrefix    = "accounts"
	revocationsPrefix = "revocations"
)

type account struct {
	ID           string    `yaml:"id"`
	Email        string    `yaml:"email"`
	PasswordHash string    `yaml:"password_hash"`
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

type revocation struct {
	TokenID   string    `yaml:"token_id"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// LocalProvider keeps bcrypt password hashes in storage and issues HS256
// signed tokens. Signed out tokens are remembered until they expire.
type LocalProvider struct {
	storage    storage.Storage
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time

	// serializes sign-ups so two accounts never share an email
	signUpMu sync.Mutex
}

type LocalOption func(*LocalProvider)

func WithBcryptCost(cost int) LocalOption {
	return func(p *LocalProvider) { p.bcryptCost = cost }
}

func WithClock(now func() time.Time) LocalOption {
	return func(p *LocalProvider) { p.now = now }
}

func NewLocalProvider(s storage.Storage, secret string, ttl time.Duration, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		storage:    s,
		secret:     []byte(secret),
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Provider = (*LocalProvider)(nil)

func accountPath(id string) string {
	return fmt.Sprintf("%s/%s.yaml", accountsPrefix, id)
}

func revocationPath(tokenID string) string {
	return fmt.Sprintf("%s/%s.yaml", revocationsPrefix, tokenID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*Token, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid email address", ErrAuth)
	}
	if len(password) < MinPasswordLength {
		return nil, errWeakPassword()
	}

	p.signUpMu.Lock()
	defer p.signUpMu.Unlock()

	if _, err := p.findAccount(ctx, email); err == nil {
		return nil, errEmailInUse()
	} else if !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to hash password: %w", err))
	}
	now := p.now()
	a := &account{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.writeAccount(ctx, a); err != nil {
		return nil, err
	}
	return p.issue(a)
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Token, error) {
	a, err := p.findAccount(ctx, normalizeEmail(email))
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials()
	}
	return p.issue(a)
}

func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	c, err := p.parse(ctx, accessToken)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(&revocation{TokenID: c.ID, ExpiresAt: c.ExpiresAt.Time})
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal revocation: %w", err))
	}
	if err := p.storage.Write(ctx, revocationPath(c.ID), data); err != nil {
		return cerr.WrapStorageWriteError("revocation", err)
	}
	return nil
}

func (p *LocalProvider) ChangePassword(ctx context.Context, accessToken, current, next string) error {
	c, err := p.parse(ctx, accessToken)
	if err != nil {
		return err
	}
	a, err := p.readAccount(ctx, c.Subject)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return errInvalidToken(err)
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(current)) != nil {
		return errReauthFailed()
	}
	if len(next) < MinPasswordLength {
		return errWeakPassword()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), p.bcryptCost)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to hash password: %w", err))
	}
	a.PasswordHash = string(hash)
	a.UpdatedAt = p.now()
	return p.writeAccount(ctx, a)
}

func (p *LocalProvider) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	c, err := p.parse(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: c.Subject, Email: c.Email}, nil
}

func (p *LocalProvider) issue(a *account) (*Token, error) {
	now := p.now()
	expiresAt := now.Add(p.ttl)
	c := &claims{
		Email: a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   a.ID,
			Issuer:    "timeguild",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to sign token: %w", err))
	}
	return &Token{
		AccessToken: signed,
		ExpiresAt:   expiresAt,
		Identity:    Identity{ID: a.ID, Email: a.Email},
	}, nil
}

func (p *LocalProvider) parse(ctx context.Context, accessToken string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(accessToken, c, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("timeguild"),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errInvalidToken(err)
	}
	revoked, err := p.storage.Exists(ctx, revocationPath(c.ID))
	if err != nil {
		return nil, cerr.WrapStorageReadError("revocation", err)
	}
	if revoked {
		return nil, errInvalidToken(errors.New("token revoked"))
	}
	return c, nil
}

func (p *LocalProvider) findAccount(ctx context.Context, email string) (*account, error) {
	paths, err := p.storage.List(ctx, accountsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("account", err)
	}
	for _, path := range paths {
		a, err := p.readPath(ctx, path)
		if err != nil {
			continue
		}
		if a.Email == email {
			return a, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "account not found", nil)
}

func (p *LocalProvider) readAccount(ctx context.Context, id string) (*account, error) {
	return p.readPath(ctx, accountPath(id))
}

func (p *LocalProvider) readPath(ctx context.Context, path string) (*account, error) {
	data, err := p.storage.Read(ctx, path)
	if err != nil {
		return nil, cerr.WrapStorageReadError("account", err)
	}
	var a account
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal account: %w", err))
	}
	return &a, nil
}

func (p *LocalProvider) writeAccount(ctx context.Context, a *account) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal account: %w", err))
	}
	if err := p.storage.Write(ctx, accountPath(a.ID), data); err != nil {
		return cerr.WrapStorageWriteError("account", err)
	}
	return nil
}
