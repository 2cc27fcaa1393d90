// Package identity signs people up and in, and tells interested parties
// when a session starts or ends.
//
// Passwords are bcrypt hashes in credentials/{email}; sessions are JWTs
// from internal/auth. Signing out revokes one token by its ID until it
// would have expired anyway.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/auth"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
	"github.com/lalith-99/familyhub/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL   = 24 * time.Hour
	MinPasswordLength = 6
)

// Session is what a successful sign-up or sign-in returns.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthState is delivered to OnAuthStateChanged listeners. SignedIn is
// false when the session named by TokenID has ended.
type AuthState struct {
	UserID   string
	Email    string
	TokenID  string
	SignedIn bool
}

type Config struct {
	Secret   string
	TokenTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Provider struct {
	store       docstore.Store
	users       repository.UserRepository
	credentials repository.CredentialRepository
	revoker     Revoker
	cfg         Config
	logger      *zap.Logger

	mu        sync.Mutex
	listeners map[uint64]func(AuthState)
	nextID    uint64
}

func NewProvider(
	store docstore.Store,
	users repository.UserRepository,
	credentials repository.CredentialRepository,
	revoker Revoker,
	cfg Config,
	logger *zap.Logger,
) *Provider {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Provider{
		store:       store,
		users:       users,
		credentials: credentials,
		revoker:     revoker,
		cfg:         cfg,
		logger:      logger,
		listeners:   make(map[uint64]func(AuthState)),
	}
}

type signUpInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
}

// SignUp registers a new account. The credential and the users/{uid}
// profile are written in one batch; a profile starts outside any family.
func (p *Provider) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	in := signUpInput{Email: strings.TrimSpace(email), Password: password}
	if err := models.Validate(&in); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, models.ValidationMessage(err), err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cfg.BcryptCost)
	if err != nil {
		p.logger.Error("failed to hash password", zap.Error(err))
		return nil, apperr.Storage("sign up failed, please try again", err)
	}

	uid := docstore.NewKey()
	batch := p.store.Batch()
	batch.Create(models.CollectionCredentials, repository.CredentialKey(in.Email), docstore.Fields{
		models.FieldUID:   uid,
		models.FieldEmail: in.Email,
		"passwordHash":    string(hash),
	})
	batch.Create(models.CollectionUsers, uid, newProfile(uid, in.Email, name))
	if err := batch.Commit(ctx); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return nil, apperr.Wrap(apperr.CodeConflict, "email already in use", err)
		}
		p.logger.Error("failed to create account", zap.Error(err))
		return nil, apperr.Storage("sign up failed, please try again", err)
	}

	p.logger.Info("account created", zap.String("user_id", uid))
	return p.startSession(uid, in.Email)
}

// SignIn checks a password and starts a session. Unknown emails and wrong
// passwords produce the same error.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "email and password are required")
	}

	cred, err := p.credentials.GetByEmail(ctx, email)
	if err != nil {
		p.logger.Error("failed to load credential", zap.Error(err))
		return nil, apperr.Storage("sign in failed, please try again", err)
	}
	if cred == nil {
		return nil, apperr.New(apperr.CodeUnauthenticated, "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.CodeUnauthenticated, "invalid email or password")
	}

	if err := p.ensureProfile(ctx, cred); err != nil {
		return nil, err
	}
	return p.startSession(cred.UID, cred.Email)
}

// ensureProfile recreates users/{uid} for accounts that predate profiles.
func (p *Provider) ensureProfile(ctx context.Context, cred *models.Credential) error {
	user, err := p.users.GetByID(ctx, cred.UID)
	if err != nil {
		p.logger.Error("failed to load profile", zap.Error(err))
		return apperr.Storage("sign in failed, please try again", err)
	}
	if user != nil {
		return nil
	}

	err = p.store.Batch().Create(models.CollectionUsers, cred.UID, newProfile(cred.UID, cred.Email, "")).Commit(ctx)
	if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
		p.logger.Error("failed to recreate profile", zap.Error(err))
		return apperr.Storage("sign in failed, please try again", err)
	}
	p.logger.Info("recreated missing profile", zap.String("user_id", cred.UID))
	return nil
}

// SignOut ends the session token belongs to.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, p.cfg.Secret)
	if err != nil {
		return apperr.Wrap(apperr.CodeUnauthenticated, "invalid or expired token", err)
	}
	if err := p.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		p.logger.Error("failed to revoke token", zap.Error(err))
		return apperr.Storage("sign out failed, please try again", err)
	}

	p.notify(AuthState{UserID: claims.UserID, Email: claims.Email, TokenID: claims.ID})
	return nil
}

// Verify returns the claims of a live session token.
func (p *Provider) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := auth.ParseToken(token, p.cfg.Secret)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthenticated, "invalid or expired token", err)
	}
	revoked, err := p.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		p.logger.Error("failed to check revocation", zap.Error(err))
		return nil, apperr.Storage("could not verify your session, please try again", err)
	}
	if revoked {
		return nil, apperr.New(apperr.CodeUnauthenticated, "your session has ended, please sign in again")
	}
	return claims, nil
}

// OnAuthStateChanged registers fn for every sign-in and sign-out handled
// by this provider. The returned function unregisters it.
func (p *Provider) OnAuthStateChanged(fn func(AuthState)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) notify(state AuthState) {
	p.mu.Lock()
	fns := make([]func(AuthState), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (p *Provider) startSession(uid, email string) (*Session, error) {
	token, claims, err := auth.GenerateToken(uid, email, p.cfg.Secret, p.cfg.TokenTTL)
	if err != nil {
		p.logger.Error("failed to generate token", zap.Error(err))
		return nil, apperr.Storage("could not start a session, please try again", err)
	}

	p.notify(AuthState{UserID: uid, Email: email, TokenID: claims.ID, SignedIn: true})
	return &Session{
		Token:     token,
		UserID:    uid,
		Email:     email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func newProfile(uid, email, name string) docstore.Fields {
	return docstore.Fields{
		models.FieldUID:       uid,
		models.FieldEmail:     email,
		models.FieldName:      strings.TrimSpace(name),
		models.FieldFamilyID:  nil,
		models.FieldCreatedAt: docstore.ServerTimestamp(),
		models.FieldUpdatedAt: docstore.ServerTimestamp(),
	}
}
