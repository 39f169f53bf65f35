package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"Food_Share/internal/model"
	"Food_Share/internal/pkg"
	"Food_Share/internal/repository/redis"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions struct {
	mu   sync.Mutex
	byID map[string]uint64
}

func (m *memSessions) Add(_ context.Context, tokenID string, userID uint64, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = map[string]uint64{}
	}
	m.byID[tokenID] = userID
	return nil
}

func (m *memSessions) UserID(_ context.Context, tokenID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byID[tokenID]
	if !ok {
		return 0, redis.ErrSessionNotFound
	}
	return id, nil
}

func (m *memSessions) Delete(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, tokenID)
	return nil
}

func newUserService(t *testing.T, sessions SessionStore) (*UserService, *pkg.TokenIssuer) {
	t.Helper()
	e := newEnv(t)
	logger, _ := test.NewNullLogger()
	tokens := pkg.NewTokenIssuer("test-secret", time.Hour)
	return NewUserService(e.store, tokens, sessions, logger), tokens
}

var donorSignup = RegisterInput{
	Name:     "Dora",
	Email:    "Dora@Example.com",
	Password: "hunter22",
	Phone:    "555-0100",
	Address:  "1 Main St",
	Role:     model.RoleDonor,
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newUserService(t, nil)
	ctx := context.Background()

	res, err := svc.Register(ctx, donorSignup)
	require.NoError(t, err)
	assert.Equal(t, "dora@example.com", res.Email)
	assert.Equal(t, model.RoleDonor, res.Role)
	assert.NotEmpty(t, res.Token)

	claims, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.ID, claims.UserID)

	login, err := svc.Login(ctx, LoginInput{Email: "dora@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, res.ID, login.ID)

	me, err := svc.Me(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dora", me.Name)
	assert.NotEqual(t, "hunter22", me.Password)
}

func TestRegister_Rules(t *testing.T) {
	svc, _ := newUserService(t, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "x"})
	requireKind(t, err, pkg.KindValidation)
	assert.ElementsMatch(t, []string{"email", "password", "phone", "address", "role"}, pkg.FieldsOf(err))

	bad := donorSignup
	bad.Role = "admin"
	_, err = svc.Register(ctx, bad)
	requireKind(t, err, pkg.KindValidation)
	assert.Equal(t, []string{"role"}, pkg.FieldsOf(err))

	_, err = svc.Register(ctx, donorSignup)
	require.NoError(t, err)
	_, err = svc.Register(ctx, donorSignup)
	requireKind(t, err, pkg.KindConflict)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newUserService(t, nil)
	ctx := context.Background()
	_, err := svc.Register(ctx, donorSignup)
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginInput{Email: "dora@example.com", Password: "wrong"})
	requireKind(t, err, pkg.KindUnauthorized)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "hunter22"})
	requireKind(t, err, pkg.KindUnauthorized)
}

func TestAuthenticate_SessionLifecycle(t *testing.T) {
	sessions := &memSessions{}
	svc, _ := newUserService(t, sessions)
	ctx := context.Background()

	res, err := svc.Register(ctx, donorSignup)
	require.NoError(t, err)

	user, claims, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.ID, user.ID)

	require.NoError(t, svc.Logout(ctx, claims.ID))
	_, _, err = svc.Authenticate(ctx, res.Token)
	requireKind(t, err, pkg.KindUnauthorized)

	_, _, err = svc.Authenticate(ctx, "garbage")
	requireKind(t, err, pkg.KindUnauthorized)
}

func TestAuthenticate_Stateless(t *testing.T) {
	svc, _ := newUserService(t, nil)
	ctx := context.Background()
	res, err := svc.Register(ctx, donorSignup)
	require.NoError(t, err)

	_, claims, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims.ID))

	_, _, err = svc.Authenticate(ctx, res.Token)
	assert.NoError(t, err, "without a session store tokens live until expiry")
}
