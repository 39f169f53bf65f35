package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"Food_Share/internal/model"
	"Food_Share/internal/pkg"
	"Food_Share/internal/repository/mysql"
	"Food_Share/internal/repository/redis"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SessionStore tracks live token ids. A nil store makes tokens stateless.
type SessionStore interface {
	Add(ctx context.Context, tokenID string, userID uint64, ttl time.Duration) error
	UserID(ctx context.Context, tokenID string) (uint64, error)
	Delete(ctx context.Context, tokenID string) error
}

type UserService struct {
	store    *mysql.Store
	tokens   *pkg.TokenIssuer
	sessions SessionStore
	log      logrus.FieldLogger
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"required"`
	Address  string `json:"address" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=donor receiver"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	ID        uint64    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewUserService(store *mysql.Store, tokens *pkg.TokenIssuer, sessions SessionStore, log logrus.FieldLogger) *UserService {
	return &UserService{
		store:    store,
		tokens:   tokens,
		sessions: sessions,
		log:      log,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, pkg.Internal("hash password", err)
	}

	user := &model.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: string(hash),
		Phone:    in.Phone,
		Address:  in.Address,
		Role:     in.Role,
	}
	if err = s.store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkg.Conflict("user already exists")
		}
		return nil, pkg.Internal("create user", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return s.issue(ctx, user)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	user, err := s.store.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkg.Unauthorized("invalid credentials")
		}
		return nil, pkg.Internal("find user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, pkg.Unauthorized("invalid credentials")
	}
	return s.issue(ctx, user)
}

func (s *UserService) issue(ctx context.Context, user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, pkg.Internal("sign token", err)
	}
	if s.sessions != nil {
		if err = s.sessions.Add(ctx, token.ID, user.ID, s.tokens.TTL()); err != nil {
			return nil, pkg.Internal("store session", err)
		}
	}
	return &AuthResult{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// Authenticate resolves a bearer token to its user and claims.
func (s *UserService) Authenticate(ctx context.Context, tokenStr string) (*model.User, *pkg.Claims, error) {
	claims, err := s.tokens.Parse(tokenStr)
	if err != nil {
		return nil, nil, pkg.Unauthorized("invalid or expired token")
	}
	if s.sessions != nil {
		owner, err := s.sessions.UserID(ctx, claims.ID)
		switch {
		case errors.Is(err, redis.ErrSessionNotFound):
			return nil, nil, pkg.Unauthorized("session has ended")
		case err != nil:
			return nil, nil, pkg.Internal("load session", err)
		case owner != claims.UserID:
			return nil, nil, pkg.Unauthorized("invalid or expired token")
		}
	}
	user, err := s.store.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkg.Unauthorized("user not found")
		}
		return nil, nil, pkg.Internal("find user", err)
	}
	return user, claims, nil
}

func (s *UserService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkg.NotFound("user not found")
		}
		return nil, pkg.Internal("find user", err)
	}
	return user, nil
}

// Logout revokes one session. It is a no-op for stateless tokens.
func (s *UserService) Logout(ctx context.Context, tokenID string) error {
	if s.sessions == nil || tokenID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, tokenID); err != nil {
		return pkg.Internal("delete session", err)
	}
	return nil
}
